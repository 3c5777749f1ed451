package color

import (
	"errors"
	"image/color"
	"testing"
)

func TestParseHex(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    RGBA
		wantErr bool
	}{
		{
			name:  "6-digit black with hash",
			input: "#000000",
			want:  RGBA{0, 0, 0, 255},
		},
		{
			name:  "6-digit white with hash",
			input: "#FFFFFF",
			want:  RGBA{255, 255, 255, 255},
		},
		{
			name:  "6-digit lowercase",
			input: "#ff00ff",
			want:  RGBA{255, 0, 255, 255},
		},
		{
			name:  "6-digit without hash",
			input: "AB12CD",
			want:  RGBA{0xAB, 0x12, 0xCD, 255},
		},
		{
			name:  "mixed case",
			input: "#FaCc15",
			want:  RGBA{0xFA, 0xCC, 0x15, 255},
		},
		{
			name:    "3-digit shorthand rejected",
			input:   "#FFF",
			wantErr: true,
		},
		{
			name:    "invalid length 4",
			input:   "#FFFF",
			wantErr: true,
		},
		{
			name:    "8-digit with alpha rejected",
			input:   "#FF0000FF",
			wantErr: true,
		},
		{
			name:    "empty string",
			input:   "",
			wantErr: true,
		},
		{
			name:    "hash only",
			input:   "#",
			wantErr: true,
		},
		{
			name:    "double hash",
			input:   "##FF0000",
			wantErr: true,
		},
		{
			name:    "non-hex characters",
			input:   "#ZZZZZZ",
			wantErr: true,
		},
		{
			name:    "signed value",
			input:   "+FFFFF",
			wantErr: true,
		},
		{
			name:    "named color",
			input:   "yellow",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseHex(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				if !errors.Is(err, ErrInvalidColor) {
					t.Errorf("error %v does not wrap ErrInvalidColor", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestHex(t *testing.T) {
	tests := []struct {
		c    RGBA
		want string
	}{
		{RGBA{0, 0, 0, 255}, "#000000"},
		{RGBA{255, 0, 0, 255}, "#FF0000"},
		{RGBA{0xFA, 0xCC, 0x15, 0}, "#FACC15"},
	}
	for _, tt := range tests {
		if got := tt.c.Hex(); got != tt.want {
			t.Errorf("RGBA%+v.Hex() = %q, want %q", tt.c, got, tt.want)
		}
	}
}

func TestNormalizeHex(t *testing.T) {
	got, err := NormalizeHex("ff0000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "#FF0000" {
		t.Errorf("got %q, want #FF0000", got)
	}
	if _, err := NormalizeHex("#12"); err == nil {
		t.Error("expected error for short color")
	}
}

func TestFromStdColor(t *testing.T) {
	tests := []struct {
		name  string
		input color.Color
		want  RGBA
	}{
		{"opaque red", color.RGBA{255, 0, 0, 255}, RGBA{255, 0, 0, 255}},
		{"opaque white", color.White, RGBA{255, 255, 255, 255}},
		{"opaque black", color.Black, RGBA{0, 0, 0, 255}},
		{"transparent", color.RGBA{0, 0, 0, 0}, RGBA{0, 0, 0, 0}},
		{"non-premultiplied kept verbatim", color.NRGBA{200, 100, 50, 128}, RGBA{200, 100, 50, 128}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromStdColor(tt.input)
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestToStdColor(t *testing.T) {
	c := RGBA{10, 20, 30, 255}
	std := c.ToStdColor()
	if std.R != 10 || std.G != 20 || std.B != 30 || std.A != 255 {
		t.Errorf("got %+v, want {10,20,30,255}", std)
	}
	n := c.ToNRGBA()
	if n.R != 10 || n.G != 20 || n.B != 30 || n.A != 255 {
		t.Errorf("got %+v, want {10,20,30,255}", n)
	}
}

func TestSameRGB(t *testing.T) {
	a := RGBA{1, 2, 3, 255}
	if !a.SameRGB(RGBA{1, 2, 3, 0}) {
		t.Error("alpha must be ignored")
	}
	if a.SameRGB(RGBA{1, 2, 4, 255}) {
		t.Error("different blue reported equal")
	}
}

func TestIsLight(t *testing.T) {
	tests := []struct {
		name string
		c    RGBA
		want bool
	}{
		{"white is light", RGBA{255, 255, 255, 255}, true},
		{"black is not light", RGBA{0, 0, 0, 255}, false},
		{"bright yellow is light", RGBA{255, 255, 0, 255}, true},
		{"dark blue is not light", RGBA{0, 0, 128, 255}, false},
		{"mid gray", RGBA{128, 128, 128, 255}, false},
		{"light gray", RGBA{200, 200, 200, 255}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.c.IsLight()
			if got != tt.want {
				t.Errorf("RGBA%+v.IsLight() = %v, want %v", tt.c, got, tt.want)
			}
		})
	}
}

func TestPaletteName(t *testing.T) {
	tests := []struct {
		hex  string
		want string
	}{
		{"#FACC15", "Happy"},
		{"#facc15", "Happy"},
		{"3B82F6", "Sad"},
		{"#123456", ""},
	}
	for _, tt := range tests {
		if got := Moods.Name(tt.hex); got != tt.want {
			t.Errorf("Moods.Name(%q) = %q, want %q", tt.hex, got, tt.want)
		}
	}
	if got := Moods.Label("#abcdef"); got != "#ABCDEF" {
		t.Errorf("Label fallback = %q, want #ABCDEF", got)
	}
}
