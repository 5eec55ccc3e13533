package model

// Keys in the app_settings table consumed by the admission controller. They
// are operator-tunable at runtime and are read fresh on every cycle.
const (
	SettingLeadSampleMaxPerRun      = "lead_sample_max_per_run"
	SettingLeadSampleDailyBudgetUSD = "lead_sample_daily_budget_usd"
)

// DefaultMaxPerRun bounds an admission cycle when the setting is absent.
const DefaultMaxPerRun = 10
