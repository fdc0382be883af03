package parameter

import (
	"errors"
	"testing"
)

func newDetectorMap() (*Set, *MapParam) {
	s := NewSet()
	m := s.Map("detectors", "detector_name", "CdTe", WithDescription("detector properties"))
	m.Float("threshold", 5.0, WithUnit(1000.0, "keV"))
	m.Int("channels", 256)
	m.String("material", "CdTe")
	m.StringVector("tags", nil)
	return s, m
}

func TestMapParam_Descriptor(t *testing.T) {
	s, _ := newDetectorMap()

	d, ok := s.Lookup("detectors")
	if !ok {
		t.Fatal("map not found")
	}
	md, ok := d.(MapDescriptor)
	if !ok {
		t.Fatalf("expected MapDescriptor, got %T", d)
	}
	if md.TypeName() != "map" {
		t.Errorf("expected type map, got %s", md.TypeName())
	}
	if md.MapKeyName() != "detector_name" || md.DefaultKey() != "CdTe" {
		t.Errorf("unexpected key %s/%s", md.MapKeyName(), md.DefaultKey())
	}
	if md.NumMapValues() != 4 {
		t.Fatalf("expected 4 columns, got %d", md.NumMapValues())
	}
	col := md.MapValue(0)
	if col.Name() != "threshold" || col.ValueString() != "5" || col.UnitName() != "keV" {
		t.Errorf("unexpected column %s=%s %s", col.Name(), col.ValueString(), col.UnitName())
	}
	if md.MapValue(4) != nil {
		t.Error("expected nil for out of range column")
	}
}

func TestMapParam_Insert(t *testing.T) {
	s, m := newDetectorMap()

	err := s.InsertMap("detectors", "Si", func(set Setter) error {
		if err := set.SetParam("threshold", 2.5); err != nil {
			return err
		}
		return set.SetParam("material", "Si")
	})
	if err != nil {
		t.Fatalf("insert Si: %v", err)
	}
	if err := s.InsertMap("detectors", "CdTe", nil); err != nil {
		t.Fatalf("insert CdTe: %v", err)
	}

	keys := m.Keys()
	if len(keys) != 2 || keys[0] != "Si" || keys[1] != "CdTe" {
		t.Fatalf("unexpected keys %v", keys)
	}

	si, _ := m.Row("Si")
	if si.Float("threshold") != 2500.0 || si.String("material") != "Si" || si.Int("channels") != 256 {
		t.Errorf("unexpected Si row: %+v", si)
	}

	// Columns reset to defaults for every insertion.
	cdte, _ := m.Row("CdTe")
	if cdte.Float("threshold") != 5000.0 || cdte.String("material") != "CdTe" {
		t.Errorf("unexpected CdTe row: %+v", cdte)
	}
}

func TestMapParam_InsertErrors(t *testing.T) {
	s, m := newDetectorMap()

	err := s.InsertMap("detectors", "bad", func(set Setter) error {
		return set.SetParam("unknown", 1)
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if m.Len() != 0 {
		t.Errorf("failed insert must not add a row, got %d", m.Len())
	}

	var n int
	s.Int(&n, "count")
	if err := s.InsertMap("count", "x", nil); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("expected ErrTypeMismatch, got %v", err)
	}
	if err := s.InsertMap("nothing", "x", nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
