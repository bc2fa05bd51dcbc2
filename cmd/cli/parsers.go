package main

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseSize parses size string (e.g., "1KB", "1.5MB", "2GB") into bytes
func ParseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, nil
	}

	multiplier := int64(1)
	if strings.HasSuffix(s, "KB") {
		multiplier = 1024
		s = s[:len(s)-2]
	} else if strings.HasSuffix(s, "MB") {
		multiplier = 1024 * 1024
		s = s[:len(s)-2]
	} else if strings.HasSuffix(s, "GB") {
		multiplier = 1024 * 1024 * 1024
		s = s[:len(s)-2]
	} else if strings.HasSuffix(s, "B") {
		s = s[:len(s)-1]
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if value < 0 {
		return 0, fmt.Errorf("negative size %q", s)
	}

	return int64(value * float64(multiplier)), nil
}

// formatSize formats file size in human-readable form
func formatSize(size int64) string {
	switch {
	case size >= 1024*1024*1024:
		return fmt.Sprintf("%.2f GB", float64(size)/(1024*1024*1024))
	case size >= 1024*1024:
		return fmt.Sprintf("%.2f MB", float64(size)/(1024*1024))
	case size >= 1024:
		return fmt.Sprintf("%.2f KB", float64(size)/1024)
	default:
		return fmt.Sprintf("%d B", size)
	}
}

// sizeValue is a pflag.Value accepting human readable sizes.
type sizeValue int64

func (s *sizeValue) Set(v string) error {
	n, err := ParseSize(v)
	if err != nil {
		return fmt.Errorf("invalid size %q: %w", v, err)
	}
	*s = sizeValue(n)
	return nil
}

func (s *sizeValue) String() string { return formatSize(int64(*s)) }

func (s *sizeValue) Type() string { return "size" }
