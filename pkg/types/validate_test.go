package types

import (
	"strings"
	"testing"
)

func TestValidateProjectName(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"shop", false},
		{"my-shop", false},
		{"a", false},
		{"shop2", false},
		{strings.Repeat("a", 50), false},
		{"", true},
		{"Shop", true},
		{"-shop", true},
		{"shop-", true},
		{"my_shop", true},
		{"my.shop", true},
		{strings.Repeat("a", 51), true},
	}
	for _, tt := range tests {
		err := ValidateProjectName(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateProjectName(%q) = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
		if err != nil && !IsKind(err, KindValidation) {
			t.Errorf("ValidateProjectName(%q) kind = %s, want validation", tt.name, KindOf(err))
		}
	}
}

func TestValidateTeamID(t *testing.T) {
	tests := []struct {
		id      string
		wantErr bool
	}{
		{"acme", false},
		{"acme-corp", false},
		{"abc", false},
		{strings.Repeat("a", 30), false},
		{"ab", true},
		{strings.Repeat("a", 31), true},
		{"Acme", true},
		{"-acme", true},
		{"acme-", true},
		{"", true},
	}
	for _, tt := range tests {
		err := ValidateTeamID(tt.id)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateTeamID(%q) = %v, wantErr %v", tt.id, err, tt.wantErr)
		}
	}
}
