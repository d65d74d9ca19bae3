package service

import (
	"encoding/json"

	"gorm.io/datatypes"
)

func encodeRates(rates []float64) (datatypes.JSON, error) {
	if rates == nil {
		rates = []float64{}
	}
	raw, err := json.Marshal(rates)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}
