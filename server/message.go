package server

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/robmorgan/tapsync/output"
)

// message is a decoded JSON command. Numbers decode as float64.
type message map[string]interface{}

func (m message) has(key string) bool {
	_, ok := m[key]
	return ok
}

func (m message) float(key string) (float64, error) {
	v, ok := m[key]
	if !ok {
		return 0, fmt.Errorf("missing %q", key)
	}

	switch v := v.(type) {
	case float64:
		return v, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a number: %w", key, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%q is not a number", key)
	}
}

func (m message) floatOr(key string, fallback float64) (float64, error) {
	if !m.has(key) {
		return fallback, nil
	}
	return m.float(key)
}

// bool accepts true/false or the numbers 0 and 1.
func (m message) bool(key string) (bool, error) {
	switch v := m[key].(type) {
	case bool:
		return v, nil
	case float64:
		if v == 0 || v == 1 {
			return v == 1, nil
		}
	}
	return false, fmt.Errorf("%q must be a boolean or 0/1", key)
}

func (m message) string(key string) (string, error) {
	switch v := m[key].(type) {
	case string:
		return v, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	}
	return "", fmt.Errorf("%q must be a string", key)
}

func (m message) port(key string) (int, error) {
	f, err := m.float(key)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || f < 1 || f > 65535 {
		return 0, fmt.Errorf("port %v not in range 1..65535", f)
	}
	return int(f), nil
}

func (m message) address(key string) (string, error) {
	s, ok := m[key].(string)
	if !ok {
		return "", fmt.Errorf("%q must be a string", key)
	}
	address := strings.TrimSpace(s)
	if err := output.ValidateAddress(address); err != nil {
		return "", err
	}
	return address, nil
}

func (m message) extras(key string) ([]output.MA3Extra, error) {
	items, ok := m[key].([]interface{})
	if !ok {
		return nil, fmt.Errorf("%q must be a list", key)
	}

	extras := make([]output.MA3Extra, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%q entries must be objects", key)
		}
		entry := message(obj)
		master, err := entry.string("master")
		if err != nil {
			return nil, err
		}
		multiplier, err := entry.float("multiplier")
		if err != nil {
			return nil, err
		}
		extra := output.MA3Extra{Master: master, Multiplier: multiplier}
		if err := extra.Validate(); err != nil {
			return nil, err
		}
		extras = append(extras, extra)
	}
	return extras, nil
}
