package models

import (
	"database/sql"
	"encoding/json"
	"time"
)

// NullString - обертка для sql.NullString, сериализуется в JSON как строка или null.
type NullString struct {
	sql.NullString
}

// NewNullString возвращает валидное значение для непустой строки.
func NewNullString(s string) NullString {
	return NullString{sql.NullString{String: s, Valid: s != ""}}
}

// MarshalJSON реализует интерфейс json.Marshaler для NullString.
func (ns NullString) MarshalJSON() ([]byte, error) {
	if !ns.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(ns.String)
}

// UnmarshalJSON реализует интерфейс json.Unmarshaler для NullString.
func (ns *NullString) UnmarshalJSON(b []byte) error {
	var s *string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	ns.Valid = s != nil
	ns.String = ""
	if s != nil {
		ns.String = *s
	}
	return nil
}

// NullTime - обертка для sql.NullTime, сериализуется в JSON как время или null.
type NullTime struct {
	sql.NullTime
}

// NewNullTime оборачивает t; нулевое время считается отсутствующим.
func NewNullTime(t time.Time) NullTime {
	return NullTime{sql.NullTime{Time: t, Valid: !t.IsZero()}}
}

// MarshalJSON реализует интерфейс json.Marshaler для NullTime.
func (nt NullTime) MarshalJSON() ([]byte, error) {
	if !nt.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(nt.Time)
}

// UnmarshalJSON реализует интерфейс json.Unmarshaler для NullTime.
func (nt *NullTime) UnmarshalJSON(b []byte) error {
	var t *time.Time
	if err := json.Unmarshal(b, &t); err != nil {
		return err
	}
	nt.Valid = t != nil
	nt.Time = time.Time{}
	if t != nil {
		nt.Time = *t
	}
	return nil
}
