package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pad(s string) []byte {
	b := make([]byte, CredentialSize)
	copy(b, s)
	return b
}

func TestParseCredentials(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		want    Credentials
		wantErr bool
	}{
		{
			name:    "ssid and password",
			payload: pad("MyNet__--__hunter22__--__"),
			want:    Credentials{SSID: "MyNet", Password: "hunter22"},
		},
		{
			name:    "password with spaces",
			payload: pad("Open__--__a b c__--__"),
			want:    Credentials{SSID: "Open", Password: "a b c"},
		},
		{
			name:    "trailing bytes after second separator ignored",
			payload: pad("A__--__B__--__garbage"),
			want:    Credentials{SSID: "A", Password: "B"},
		},
		{
			name:    "underscores inside names",
			payload: pad("my_net__--__pa_ss-__--__"),
			want:    Credentials{SSID: "my_net", Password: "pa_ss-"},
		},
		{
			name:    "no separator",
			payload: pad("MyNet hunter22"),
			wantErr: true,
		},
		{
			name:    "missing second separator",
			payload: pad("MyNet__--__hunter22"),
			wantErr: true,
		},
		{
			name:    "empty ssid",
			payload: pad("__--__pw__--__"),
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCredentials(tt.payload)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrIncompleteCredentials)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncodeCredentials(t *testing.T) {
	in := Credentials{SSID: "Workshop", Password: "p@ss word"}
	payload, err := EncodeCredentials(in)
	require.NoError(t, err)
	assert.Len(t, payload, CredentialSize)

	got, err := ParseCredentials(payload)
	require.NoError(t, err)
	assert.Equal(t, in, got)

	_, err = EncodeCredentials(Credentials{SSID: string(make([]byte, 30)), Password: string(make([]byte, 10))})
	assert.Error(t, err)
}
