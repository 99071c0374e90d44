package database

import (
	"math"
	"testing"
)

func TestRecord_Int64(t *testing.T) {
	tests := []struct {
		name string
		v    any
		want int64
	}{
		{"nil", nil, 0},
		{"int", int(7), 7},
		{"int8", int8(-8), -8},
		{"int16", int16(16), 16},
		{"int32", int32(32), 32},
		{"int64", int64(64), 64},
		{"uint", uint(5), 5},
		{"uint8", uint8(255), 255},
		{"uint16", uint16(65535), 65535},
		{"uint32", uint32(math.MaxUint32), math.MaxUint32},
		{"uint64", uint64(42), 42},
		{"uint64 beyond int64 saturates", uint64(math.MaxUint64), math.MaxInt64},
		{"float32 truncates", float32(2.9), 2},
		{"float64 truncates", -2.9, -2},
		{"huge float saturates", 1e30, math.MaxInt64},
		{"NaN", math.NaN(), 0},
		{"true", true, 1},
		{"false", false, 0},
		{"string", " 12 ", 12},
		{"decimal string", "3.75", 3},
		{"bytes", []byte("99"), 99},
		{"garbage", "twelve", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := (Record{"n": tt.v}).Int64("n"); got != tt.want {
				t.Fatalf("Int64(%v) = %d, want %d", tt.v, got, tt.want)
			}
		})
	}
}

func TestRecord_Float64(t *testing.T) {
	tests := []struct {
		name string
		v    any
		want float64
	}{
		{"nil", nil, 0},
		{"float32", float32(1.5), 1.5},
		{"float64", 299.99, 299.99},
		{"int8", int8(-3), -3},
		{"int16", int16(300), 300},
		{"int32", int32(7), 7},
		{"int64", int64(9), 9},
		{"int", 4, 4},
		{"uint", uint(2), 2},
		{"uint8", uint8(8), 8},
		{"uint16", uint16(16), 16},
		{"uint32", uint32(32), 32},
		{"uint64", uint64(64), 64},
		{"true", true, 1},
		{"false", false, 0},
		{"string", "249.50", 249.5},
		{"bytes", []byte("1.25"), 1.25},
		{"garbage", "n/a", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := (Record{"x": tt.v}).Float64("x"); got != tt.want {
				t.Fatalf("Float64(%v) = %v, want %v", tt.v, got, tt.want)
			}
		})
	}
}
