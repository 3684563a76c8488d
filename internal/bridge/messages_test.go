package bridge

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestDecodeCommand(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr bool
		want    CommandRecord
	}{
		{
			name:    "complete",
			payload: `{"result":7,"device_id":"d1","request_id":"r1","service_id":"s1","method":"on","cmd_content":{"level":3}}`,
			want: CommandRecord{
				Result:    7,
				DeviceID:  "d1",
				RequestID: "r1",
				ServiceID: "s1",
				Method:    "on",
				Content:   json.RawMessage(`{"level":3}`),
			},
		},
		{
			name:    "no content",
			payload: `{"device_id":"d1","request_id":"r1","method":"off"}`,
			want:    CommandRecord{DeviceID: "d1", RequestID: "r1", Method: "off"},
		},
		{name: "malformed", payload: `{"device_id":`, wantErr: true},
		{name: "negative result", payload: `{"result":-1,"device_id":"d1","request_id":"r1","method":"on"}`, wantErr: true},
		{name: "missing device", payload: `{"request_id":"r1","method":"on"}`, wantErr: true},
		{name: "missing request", payload: `{"device_id":"d1","method":"on"}`, wantErr: true},
		{name: "missing method", payload: `{"device_id":"d1","request_id":"r1"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeCommand([]byte(tt.payload))
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidCommand) {
					t.Errorf("decodeCommand() error = %v, want ErrInvalidCommand", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("decodeCommand() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("decodeCommand() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNumericFields(t *testing.T) {
	fields, err := numericFields([]byte(`{"a":1,"b":false,"c":"text","d":null,"e":{"nested":1}}`))
	if err != nil {
		t.Fatalf("numericFields() error = %v", err)
	}
	if len(fields) != 2 || fields["a"] != 1 || fields["b"] != 0 {
		t.Errorf("numericFields() = %v", fields)
	}
}
