package main

import (
	"encoding/json"
	"fmt"
	"os"

	"hpfold/internal/colony"
	"hpfold/pkg/hpfold"
)

// loadRunRequestFromConfig reads a JSON run config. Keys that are absent keep
// the values of colony.DefaultConfig.
func loadRunRequestFromConfig(path string) (hpfold.RunRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return hpfold.RunRequest{}, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return hpfold.RunRequest{}, err
	}

	req := hpfold.RunRequest{Config: colony.DefaultConfig()}
	if v, ok := asString(raw["run_id"]); ok {
		req.RunID = v
	}
	if v, ok := asString(raw["sequence"]); ok {
		req.Sequence = v
	}
	if v, ok := asInt(raw["benchmark"]); ok {
		req.BenchmarkIndex = v
	}
	if v, ok := asInt(raw["reference"]); ok {
		req.Reference = v
	}
	if v, ok := asBool(raw["append_result"]); ok {
		req.AppendResult = v
	}
	if v, ok := asInt(raw["ant_count"]); ok {
		req.Config.AntCount = v
	}
	if v, ok := asInt(raw["max_iter"]); ok {
		req.Config.MaxIter = v
	}
	if v, ok := asInt(raw["no_impr_max"]); ok {
		req.Config.NoImprMax = v
	}
	if v, ok := asFloat64(raw["evaporation"]); ok {
		req.Config.Evaporation = v
	}
	if v, ok := asFloat64(raw["alpha"]); ok {
		req.Config.Alpha = v
	}
	if v, ok := asFloat64(raw["beta"]); ok {
		req.Config.Beta = v
	}
	if v, ok := asFloat64(raw["neutral_mutation_rate"]); ok {
		req.Config.NeutralMutationRate = v
	}
	if v, ok := asString(raw["deposit"]); ok {
		req.Config.Deposit = colony.DepositRule(v)
	}
	if v, ok := asInt(raw["workers"]); ok {
		req.Config.Workers = v
	}
	if v, ok := asInt64(raw["seed"]); ok {
		req.Config.Seed = v
	}
	return req, nil
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case float64:
		return int(x), true
	default:
		return 0, false
	}
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		return int64(x), true
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}

// overrideFromFlags applies only the flags that were set on the command line.
func overrideFromFlags(req *hpfold.RunRequest, set map[string]bool, flagValue map[string]any) error {
	for name := range set {
		v, ok := flagValue[name]
		if !ok {
			continue
		}
		switch name {
		case "run-id":
			req.RunID = v.(string)
		case "sequence":
			req.Sequence = v.(string)
		case "benchmark":
			req.BenchmarkIndex = v.(int)
		case "reference":
			req.Reference = v.(int)
		case "append-result":
			req.AppendResult = v.(bool)
		case "ants":
			req.Config.AntCount = v.(int)
		case "max-iter":
			req.Config.MaxIter = v.(int)
		case "no-impr-max":
			req.Config.NoImprMax = v.(int)
		case "evaporation":
			req.Config.Evaporation = v.(float64)
		case "alpha":
			req.Config.Alpha = v.(float64)
		case "beta":
			req.Config.Beta = v.(float64)
		case "neutral-rate":
			req.Config.NeutralMutationRate = v.(float64)
		case "deposit":
			req.Config.Deposit = colony.DepositRule(v.(string))
		case "workers":
			req.Config.Workers = v.(int)
		case "seed":
			req.Config.Seed = v.(int64)
		default:
			return fmt.Errorf("unsupported override flag: %s", name)
		}
	}
	return nil
}

func loadOrDefaultRunRequest(configPath string) (hpfold.RunRequest, error) {
	if configPath == "" {
		return hpfold.RunRequest{}, nil
	}
	req, err := loadRunRequestFromConfig(configPath)
	if err != nil {
		return hpfold.RunRequest{}, fmt.Errorf("load config: %w", err)
	}
	return req, nil
}
