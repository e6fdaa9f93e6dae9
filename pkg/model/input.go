package model

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"

	"github.com/mitchellh/mapstructure"
)

type RawDomain struct {
	PeriodsPerDay int            `json:"periodsPerDay" mapstructure:"periodsPerDay" validate:"min=1,max=24"`
	PeriodMinutes int            `json:"periodMinutes,omitempty" mapstructure:"periodMinutes" validate:"min=0"`
	Breaks        []Slot         `json:"breaks,omitempty" mapstructure:"breaks"`
	Subjects      []Subject      `json:"subjects" mapstructure:"subjects" validate:"dive"`
	Teachers      []Teacher      `json:"teachers" mapstructure:"teachers" validate:"dive"`
	Classes       []ClassSection `json:"classes" mapstructure:"classes" validate:"dive"`
	Rooms         []Room         `json:"rooms" mapstructure:"rooms" validate:"dive"`
}

const DefaultPeriodMinutes = 45

func InputFromJson(file string) (*Domain, error) {
	bytes, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("cannot read domain file: %w", err)
	}
	return DomainFromBytes(bytes)
}

func DomainFromBytes(bytes []byte) (*Domain, error) {
	var inputJson map[string]any
	if err := json.Unmarshal(bytes, &inputJson); err != nil {
		return nil, fmt.Errorf("cannot parse domain json: %w", err)
	}

	var rawDomain RawDomain
	if err := Decode(inputJson, &rawDomain); err != nil {
		return nil, fmt.Errorf("cannot decode domain: %w", err)
	}
	return NewDomain(rawDomain)
}

// Decode maps loosely typed JSON values onto model structs; days may be given as names or numbers
func Decode(input any, output any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: dayHook,
		Result:     output,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

func dayHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(Day(0)) || from.Kind() != reflect.String {
		return data, nil
	}
	return ParseDay(data.(string))
}
