package protocol

import (
	"errors"
	"reflect"
	"testing"
)

func TestFormatTimeout(t *testing.T) {
	tests := []struct {
		seconds uint32
		want    string
	}{
		{1800, "Second-1800"},
		{1, "Second-1"},
		{0, "Second-infinite"},
	}

	for _, tt := range tests {
		if got := FormatTimeout(tt.seconds); got != tt.want {
			t.Errorf("FormatTimeout(%d) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestParseTimeout(t *testing.T) {
	tests := []struct {
		header string
		want   uint32
		wantOK bool
	}{
		{"Second-1800", 1800, true},
		{"second-300", 300, true},
		{"  SECOND-60 ", 60, true},
		{"Second-infinite", 0, true},
		{"Second-Infinite", 0, true},
		{"", 0, false},
		{"1800", 0, false},
		{"Second-", 0, false},
		{"Second-abc", 0, false},
		{"Second--5", 0, false},
		{"Second-99999999999", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseTimeout(tt.header)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseTimeout(%q) = (%d, %v), want (%d, %v)", tt.header, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestFormatCallback(t *testing.T) {
	got := FormatCallback([]string{"http://192.168.1.5:8008/notify", "http://10.0.0.5:8008/notify"})
	want := "<http://192.168.1.5:8008/notify> <http://10.0.0.5:8008/notify>"
	if got != want {
		t.Errorf("FormatCallback() = %q, want %q", got, want)
	}

	if got := ParseCallback(want); !reflect.DeepEqual(got, []string{"http://192.168.1.5:8008/notify", "http://10.0.0.5:8008/notify"}) {
		t.Errorf("ParseCallback() = %v", got)
	}
	if got := ParseCallback("no brackets"); got != nil {
		t.Errorf("ParseCallback(no brackets) = %v, want nil", got)
	}
}

func TestParsePropertySet(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    map[string]string
		wantErr bool
	}{
		{
			name: "single variable",
			body: `<?xml version="1.0"?>
<e:propertyset xmlns:e="urn:schemas-upnp-org:event-1-0">
  <e:property>
    <ExternalIPAddress>203.0.113.7</ExternalIPAddress>
  </e:property>
</e:propertyset>`,
			want: map[string]string{"ExternalIPAddress": "203.0.113.7"},
		},
		{
			name: "several properties",
			body: `<e:propertyset xmlns:e="urn:schemas-upnp-org:event-1-0">` +
				`<e:property><ConnectionStatus>Connected</ConnectionStatus></e:property>` +
				`<e:property><PortMappingNumberOfEntries>4</PortMappingNumberOfEntries></e:property>` +
				`</e:propertyset>`,
			want: map[string]string{"ConnectionStatus": "Connected", "PortMappingNumberOfEntries": "4"},
		},
		{
			name: "escaped LastChange payload",
			body: `<e:propertyset xmlns:e="urn:schemas-upnp-org:event-1-0"><e:property>` +
				`<LastChange>&lt;Event&gt;&lt;InstanceID val="0"/&gt;&lt;/Event&gt;</LastChange>` +
				`</e:property></e:propertyset>`,
			want: map[string]string{"LastChange": `<Event><InstanceID val="0"/></Event>`},
		},
		{
			name: "empty variable",
			body: `<e:propertyset xmlns:e="urn:schemas-upnp-org:event-1-0"><e:property><Volume/></e:property></e:propertyset>`,
			want: map[string]string{"Volume": ""},
		},
		{
			name: "empty propertyset",
			body: `<e:propertyset xmlns:e="urn:schemas-upnp-org:event-1-0"></e:propertyset>`,
			want: map[string]string{},
		},
		{
			name:    "wrong root",
			body:    `<root><property><A>1</A></property></root>`,
			wantErr: true,
		},
		{
			name:    "unterminated",
			body:    `<e:propertyset xmlns:e="urn:schemas-upnp-org:event-1-0"><e:property><A>1</A>`,
			wantErr: true,
		},
		{
			name:    "not xml",
			body:    `ExternalIPAddress=203.0.113.7`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePropertySet([]byte(tt.body))
			if tt.wantErr {
				var perr *ParseError
				if !errors.As(err, &perr) || perr.Doc != DocPropertySet {
					t.Errorf("ParsePropertySet() error = %v, want property set ParseError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePropertySet() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParsePropertySet() = %v, want %v", got, tt.want)
			}
		})
	}
}
