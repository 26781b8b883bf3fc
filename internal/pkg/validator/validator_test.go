package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsEmpty(t *testing.T) {
	cases := []struct {
		input string
		want  bool
	}{
		{"", true},
		{"   ", true},
		{"abc", false},
		{" abc ", false},
	}
	for _, c := range cases {
		got := IsEmpty(c.input)
		if got != c.want {
			t.Errorf("IsEmpty(%q) = %v, want %v", c.input, got, c.want)
		}
	}
}

func TestIsValidUUID(t *testing.T) {
	valid := []string{
		"0188d0f2-7b8c-7b4a-8a2b-6b8b8b8b8b8b",
		"123E4567-E89B-12D3-A456-426614174000",
	}
	invalid := []string{
		"0188d0f27b8c7b4a8a2b6b8b8b8b8b8b",
		"g188d0f2-7b8c-7b4a-8a2b-6b8b8b8b8b8b",
		"",
	}
	for _, uuid := range valid {
		if !IsValidUUID(uuid) {
			t.Errorf("IsValidUUID(%q) = false, want true", uuid)
		}
	}
	for _, uuid := range invalid {
		if IsValidUUID(uuid) {
			t.Errorf("IsValidUUID(%q) = true, want false", uuid)
		}
	}
}

func TestIsValidClock(t *testing.T) {
	valid := []string{"00:00", "09:05", "23:59"}
	invalid := []string{"24:00", "9:05", "09:60", "0905", ""}
	for _, s := range valid {
		if !IsValidClock(s) {
			t.Errorf("IsValidClock(%q) = false, want true", s)
		}
	}
	for _, s := range invalid {
		if IsValidClock(s) {
			t.Errorf("IsValidClock(%q) = true, want false", s)
		}
	}
}

func TestIsValidDate(t *testing.T) {
	valid := []string{"2023-01-01", "2000-12-31"}
	invalid := []string{"2023-13-01", "2023-01-32", "2023/01/01", "01-01-2023", ""}
	for _, s := range valid {
		_, ok := IsValidDate(s)
		if !ok {
			t.Errorf("IsValidDate(%q) = false, want true", s)
		}
	}
	for _, s := range invalid {
		_, ok := IsValidDate(s)
		if ok {
			t.Errorf("IsValidDate(%q) = true, want false", s)
		}
	}
}

func TestIsValidTimezone(t *testing.T) {
	assert.True(t, IsValidTimezone("UTC"))
	assert.True(t, IsValidTimezone("Asia/Jakarta"))
	assert.False(t, IsValidTimezone("Mars/Olympus"))
	assert.False(t, IsValidTimezone(" "))
}

func TestIsValidCoordinate(t *testing.T) {
	assert.True(t, IsValidCoordinate(-6.2, 106.8))
	assert.False(t, IsValidCoordinate(91, 0))
	assert.False(t, IsValidCoordinate(0, -181))
}

func TestIsInSlice(t *testing.T) {
	slice := []string{"a", "b", "c"}
	if !IsInSlice("a", slice) {
		t.Errorf("IsInSlice('a') = false, want true")
	}
	if IsInSlice("d", slice) {
		t.Errorf("IsInSlice('d') = true, want false")
	}
}

func TestValidationErrors_Error(t *testing.T) {
	errs := ValidationErrors{
		{Field: "employee_id", Message: "required"},
		{Field: "latitude", Message: "invalid"},
	}
	assert.Equal(t, "employee_id: required; latitude: invalid", errs.Error())
	assert.Equal(t, map[string]string{"employee_id": "required", "latitude": "invalid"}, errs.ToMap())
}

func TestValidationErrors_Err(t *testing.T) {
	var errs ValidationErrors
	assert.NoError(t, errs.Err())

	errs.Add("field", "broken")
	assert.Error(t, errs.Err())
}

type sampleSettings struct {
	Start       string `json:"work_start_time" validate:"required,hhmm"`
	Timezone    string `json:"timezone" validate:"required,tzname"`
	Late        int    `json:"late_threshold" validate:"gte=0,lte=240"`
	WorkingDays []int  `json:"working_days" validate:"unique,dive,gte=0,lte=6"`
}

func TestValidateStruct(t *testing.T) {
	ok := sampleSettings{Start: "09:00", Timezone: "UTC", Late: 10, WorkingDays: []int{1, 2}}
	require.NoError(t, ValidateStruct(ok))

	bad := sampleSettings{Start: "9am", Timezone: "Nowhere/City", Late: -1, WorkingDays: []int{1, 9}}
	err := ValidateStruct(bad)
	require.Error(t, err)

	var errs ValidationErrors
	require.ErrorAs(t, err, &errs)
	fields := errs.ToMap()
	assert.Contains(t, fields, "work_start_time")
	assert.Contains(t, fields, "timezone")
	assert.Contains(t, fields, "late_threshold")
	assert.Contains(t, fields, "working_days[1]")
	assert.Equal(t, "work_start_time must be in HH:MM format", fields["work_start_time"])
}
