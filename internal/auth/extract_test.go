package auth

import (
	"errors"
	"net/http"
	"testing"
)

func TestBearerToken(t *testing.T) {
	cases := []struct {
		name    string
		header  http.Header
		want    string
		wantErr bool
	}{
		{name: "valid", header: http.Header{"Authorization": {"Bearer abc.def.ghi"}}, want: "abc.def.ghi"},
		{name: "lowercase header name", header: http.Header{"authorization": {"Bearer abc"}}, want: "abc"},
		{name: "trailing spaces", header: http.Header{"Authorization": {"Bearer abc  "}}, want: "abc"},
		{name: "missing", header: http.Header{}, wantErr: true},
		{name: "empty value", header: http.Header{"Authorization": {""}}, wantErr: true},
		{name: "prefix only", header: http.Header{"Authorization": {"Bearer "}}, wantErr: true},
		{name: "prefix and spaces", header: http.Header{"Authorization": {"Bearer    "}}, wantErr: true},
		{name: "lowercase scheme", header: http.Header{"Authorization": {"bearer abc"}}, wantErr: true},
		{name: "basic scheme", header: http.Header{"Authorization": {"Basic dXNlcjpwYXNz"}}, wantErr: true},
		{name: "no space", header: http.Header{"Authorization": {"Bearerabc"}}, wantErr: true},
		{name: "two values", header: http.Header{"Authorization": {"Bearer a", "Bearer b"}}, wantErr: true},
		{name: "two spellings", header: http.Header{"Authorization": {"Bearer a"}, "authorization": {"Bearer a"}}, wantErr: true},
		{name: "embedded space", header: http.Header{"Authorization": {"Bearer a b"}}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := BearerToken(tc.header)
			if tc.wantErr {
				if !errors.Is(err, ErrUnauthenticated) {
					t.Fatalf("expected ErrUnauthenticated, got %q, %v", got, err)
				}
				return
			}
			if err != nil || got != tc.want {
				t.Fatalf("BearerToken = %q, %v; want %q", got, err, tc.want)
			}
		})
	}
}
