package catalog

import (
	"strings"
	"testing"
)

func TestNewCatalogRejectsDuplicates(t *testing.T) {
	_, err := NewCatalog([]Variable{
		{Name: "client_name", Group: "client", Type: NonTransactional},
		{Name: "client_name", Group: "client", Type: NonTransactional},
	})
	if err == nil {
		t.Fatal("expected duplicate variable error")
	}
	if !strings.Contains(err.Error(), "client_name") {
		t.Errorf("error should name the duplicate: %v", err)
	}
}

func TestNewCatalogRejectsEmptyName(t *testing.T) {
	_, err := NewCatalog([]Variable{{Name: "   ", Group: "client"}})
	if err == nil {
		t.Fatal("expected empty-name error")
	}
}

func TestParseVariableType(t *testing.T) {
	cases := []struct {
		in      string
		want    VariableType
		wantErr bool
	}{
		{"transactional", Transactional, false},
		{"Transactional", Transactional, false},
		{"non_transactional", NonTransactional, false},
		{"Non-Transactional", NonTransactional, false},
		{"non transactional", NonTransactional, false},
		{"nontransactional", NonTransactional, false},
		{"reference", "", true},
	}
	for _, tc := range cases {
		got, err := ParseVariableType(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseVariableType(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseVariableType(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseVariableType(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestValidateFlags(t *testing.T) {
	cat, err := NewCatalog([]Variable{
		{Name: "client_name", Group: "client", Type: NonTransactional},
		{Name: "trade_volume", Group: "trading", Type: Transactional},
	})
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}

	ok := Entity{EGID: "EG-1", Flags: map[string]bool{"client_name": true}}
	if err := cat.ValidateFlags(ok); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}

	bad := Entity{EGID: "EG-2", Flags: map[string]bool{"client_name": true, "ghost_var": false}}
	err = cat.ValidateFlags(bad)
	if err == nil {
		t.Fatal("expected unknown-variable error")
	}
	if !strings.Contains(err.Error(), "ghost_var") || !strings.Contains(err.Error(), "EG-2") {
		t.Errorf("error should carry EGID and variable name: %v", err)
	}
}
