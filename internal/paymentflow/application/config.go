package application

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	paymentflow "lnwallet-cloud/internal/paymentflow/domain"
)

// LoadFeeSchedule reads the fee schedule from a YAML file.
func LoadFeeSchedule(path string) (paymentflow.FeeSchedule, error) {
	var schedule paymentflow.FeeSchedule

	raw, err := os.ReadFile(path)
	if err != nil {
		return schedule, fmt.Errorf("read fee schedule: %w", err)
	}
	if err := yaml.Unmarshal(raw, &schedule); err != nil {
		return schedule, fmt.Errorf("parse fee schedule: %w", err)
	}
	if len(schedule.Rails) == 0 {
		return schedule, fmt.Errorf("fee schedule %s: no rails configured", path)
	}
	return schedule, nil
}
