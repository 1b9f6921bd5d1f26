package types

import "testing"

func TestAddressValueScan(t *testing.T) {
	line2 := "Apt 4"
	addr := Address{Name: "Ada", Line1: "1 Main St", Line2: &line2, City: "Springfield", PostalCode: "12345", Country: "us"}.Normalize()

	value, err := addr.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}

	var decoded Address
	if err := decoded.Scan(value); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if decoded.Country != "US" || decoded.Line2 == nil || *decoded.Line2 != "Apt 4" {
		t.Fatalf("unexpected decoded address %+v", decoded)
	}

	if err := decoded.Scan([]byte(`{"line1":"x","city":"y","postal_code":"z"}`)); err != nil {
		t.Fatalf("Scan bytes: %v", err)
	}
	if decoded.Line1 != "x" {
		t.Fatalf("unexpected line1 %q", decoded.Line1)
	}
}

func TestAddressValueRequiresFields(t *testing.T) {
	if _, err := (Address{City: "x", PostalCode: "1"}).Value(); err == nil {
		t.Fatalf("expected missing line1 error")
	}
	if err := (&Address{}).Scan(42); err == nil {
		t.Fatalf("expected unsupported scan type error")
	}
}

func TestNormalizeDefaultsCountry(t *testing.T) {
	got := Address{Line1: "  1 Main ", City: " A ", PostalCode: " 9 "}.Normalize()
	if got.Country != "US" || got.Line1 != "1 Main" || got.City != "A" || got.PostalCode != "9" {
		t.Fatalf("unexpected normalized address %+v", got)
	}
}
