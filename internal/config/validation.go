package config

import (
	"fmt"
	"strings"
	"time"
)

func validate(c *Config) error {
	if err := c.Data.validate(); err != nil {
		return err
	}
	if err := c.Models.validate(); err != nil {
		return err
	}
	if err := c.Schedule.validate(); err != nil {
		return err
	}
	if err := c.Broker.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	return nil
}

func (d *DataConfig) validate() error {
	if d.Lookback < 1 {
		return fmt.Errorf("data.lookback must be >= 1")
	}
	if d.MinHistory < 1 {
		return fmt.Errorf("data.min_history must be >= 1")
	}
	if d.MinHistory > d.Lookback {
		return fmt.Errorf("data.min_history cannot exceed data.lookback")
	}
	return nil
}

func (m *ModelsConfig) validate() error {
	if strings.TrimSpace(m.Manifest) == "" {
		return fmt.Errorf("models.manifest cannot be empty")
	}
	return nil
}

func (s *ScheduleConfig) validate() error {
	if s.Hour < 0 || s.Hour > 23 {
		return fmt.Errorf("schedule.hour must be in [0,23]")
	}
	if s.Minute < 0 || s.Minute > 59 {
		return fmt.Errorf("schedule.minute must be in [0,59]")
	}
	if _, err := time.LoadLocation(s.Timezone); err != nil {
		return fmt.Errorf("schedule.timezone is not a valid zone: %s", s.Timezone)
	}
	return nil
}

func (b *BrokerConfig) validate() error {
	hasKey := strings.TrimSpace(b.APIKey) != ""
	hasSecret := strings.TrimSpace(b.APISecret) != ""
	if hasKey != hasSecret {
		return fmt.Errorf("broker requires both api_key and api_secret or neither")
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	if n.Telegram.Enabled {
		if n.Telegram.BotToken == "" || n.Telegram.ChatID == "" {
			return fmt.Errorf("telegram notification enabled but missing bot_token or chat_id")
		}
	}
	return nil
}
