package application

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	reward "lnwallet-cloud/internal/reward/domain"
)

// LoadSchedule reads the reward amount table from a YAML file.
func LoadSchedule(path string) (reward.Schedule, error) {
	var schedule reward.Schedule

	raw, err := os.ReadFile(path)
	if err != nil {
		return schedule, fmt.Errorf("read reward schedule: %w", err)
	}
	if err := yaml.Unmarshal(raw, &schedule); err != nil {
		return schedule, fmt.Errorf("parse reward schedule: %w", err)
	}
	if len(schedule.RewardsSats) == 0 {
		return schedule, fmt.Errorf("reward schedule %s: no rewards configured", path)
	}
	return schedule, nil
}
