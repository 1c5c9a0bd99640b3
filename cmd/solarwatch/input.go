package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/HerbHall/solarwatch/internal/anomaly"
	"github.com/HerbHall/solarwatch/pkg/energy"
)

// recordFile is the object form of a record file. A bare list of records is
// accepted as well.
type recordFile struct {
	UnitID  string               `json:"unitId" yaml:"unitId"`
	Records []energy.RecordInput `json:"records" yaml:"records"`
}

// readRecordFile loads and validates records from a JSON or YAML file,
// chosen by extension (.yaml and .yml are YAML, anything else JSON).
func readRecordFile(path string) (recordFile, []energy.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return recordFile{}, nil, fmt.Errorf("read %s: %w", path, err)
	}

	unmarshal := json.Unmarshal
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		unmarshal = yaml.Unmarshal
	}

	var file recordFile
	if err := unmarshal(data, &file.Records); err != nil {
		file = recordFile{}
		if err := unmarshal(data, &file); err != nil {
			return recordFile{}, nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	recs, err := anomaly.FromInput(file.Records)
	if err != nil {
		return recordFile{}, nil, fmt.Errorf("%s: %w", path, err)
	}
	return file, recs, nil
}
