package main

import (
	"bytes"
	"strings"
	"testing"
)

func testContext() *BootstrapContext {
	return &BootstrapContext{
		Environment: "prod",
		AWSProfile:  "atmos-prod",
		AWSRegion:   "eu-west-1",
		AccountID:   "123456789012",
		CallerARN:   "arn:aws:iam::123456789012:user/ops",
	}
}

func TestConfirmProduction(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"yes\n", true},
		{"  YES \n", true},
		{"y\n", false},
		{"no\n", false},
		{"", false},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		if got := confirmProduction(testContext(), strings.NewReader(tt.input), &out); got != tt.want {
			t.Errorf("confirmProduction(%q) = %v, want %v", tt.input, got, tt.want)
		}
		if !strings.Contains(out.String(), "123456789012") {
			t.Error("warning does not show the account")
		}
	}
}

func TestPrintBanner(t *testing.T) {
	var out bytes.Buffer
	printBanner(&out, testContext())

	for _, want := range []string{"Atmos Bootstrap", "eu-west-1", "atmos-prod", "/prod/atmos/"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("banner missing %q:\n%s", want, out.String())
		}
	}
}
