package item

import (
	"errors"
	"testing"
)

func TestFilterApply(t *testing.T) {
	iron := Key{Name: "minecraft:iron_ingot"}
	ironDetail := &Detail{Label: "Iron Ingot", Name: "minecraft:iron_ingot", MaxSize: 64}

	tests := []struct {
		name   string
		filter Filter
		key    Key
		detail *Detail
		want   bool
	}{
		{"label match", Label("Iron Ingot"), iron, ironDetail, true},
		{"label mismatch", Label("Gold Ingot"), iron, ironDetail, false},
		{"label without detail", Label("Iron Ingot"), iron, nil, false},
		{"name match", Name("minecraft:iron_ingot"), iron, nil, true},
		{"name mismatch", Name("minecraft:gold_ingot"), iron, ironDetail, false},
		{"both match", Both("Iron Ingot", "minecraft:iron_ingot"), iron, ironDetail, true},
		{"both label only", Both("Iron Ingot", "minecraft:other"), iron, ironDetail, false},
		{"both name only", Both("Other", "minecraft:iron_ingot"), iron, ironDetail, false},
		{"custom true", Custom("always", func(Key, *Detail) bool { return true }), iron, nil, true},
		{"custom nil predicate", Custom("broken", nil), iron, ironDetail, false},
		{"zero filter", Filter{}, iron, ironDetail, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Apply(tt.key, tt.detail); got != tt.want {
				t.Errorf("Apply() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilterEqualCustomByDescription(t *testing.T) {
	a := Custom("tools", func(Key, *Detail) bool { return true })
	b := Custom("tools", func(Key, *Detail) bool { return false })
	c := Custom("weapons", func(Key, *Detail) bool { return true })

	if !a.Equal(b) {
		t.Error("custom filters with the same description should be equal")
	}
	if a.Equal(c) {
		t.Error("custom filters with different descriptions should differ")
	}
	if Label("x").Equal(Name("x")) {
		t.Error("label and name filters with the same value should differ")
	}
}

func TestParseCustom(t *testing.T) {
	enchanted := Key{Name: "minecraft:book", NBT: "abc123"}
	plain := Key{Name: "minecraft:book"}
	detail := &Detail{Label: "Enchanted Book", Name: "minecraft:book", MaxSize: 1}

	tests := []struct {
		desc    string
		key     Key
		detail  *Detail
		want    bool
		wantErr bool
	}{
		{desc: "any", key: plain, want: true},
		{desc: "nbt:abc123", key: enchanted, want: true},
		{desc: "nbt:abc123", key: plain, want: false},
		{desc: "label~^Enchanted", key: plain, detail: detail, want: true},
		{desc: "label~^Enchanted", key: plain, want: false},
		{desc: "name~book$", key: plain, want: true},
		{desc: "name~[", wantErr: true},
		{desc: "whatever", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			f, err := ParseCustom(tt.desc)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownPredicate) {
					t.Fatalf("ParseCustom() error = %v, want ErrUnknownPredicate", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseCustom() error = %v", err)
			}
			if f.Kind() != KindCustom {
				t.Errorf("Kind() = %v, want Custom", f.Kind())
			}
			if got := f.Apply(tt.key, tt.detail); got != tt.want {
				t.Errorf("Apply() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDetailStackString(t *testing.T) {
	s := DetailStack{Key: Key{Name: "minecraft:stone"}, Size: 12}
	if got := s.String(); got != "12x minecraft:stone" {
		t.Errorf("String() = %q", got)
	}
	s.Detail = &Detail{Label: "Stone"}
	if got := s.String(); got != "12x Stone" {
		t.Errorf("String() = %q", got)
	}
}
