package models

// SettingsKind — вид набора настроек профиля.
type SettingsKind string

const (
	SettingsDisplay SettingsKind = "display"
	SettingsPrivacy SettingsKind = "privacy"
)

// DisplaySettings — настройки отображения.
type DisplaySettings struct {
	Theme      string `json:"theme"`
	Language   string `json:"language"`
	Timezone   string `json:"timezone"`
	DateFormat string `json:"dateFormat"`
	Currency   string `json:"currency"`
}

// DefaultDisplaySettings возвращает настройки отображения по умолчанию.
func DefaultDisplaySettings() DisplaySettings {
	return DisplaySettings{
		Theme:      "light",
		Language:   "en",
		Timezone:   "UTC",
		DateFormat: "MM/DD/YYYY",
		Currency:   "USD",
	}
}

// DisplaySettingsPatch — частичное обновление; nil-поля не меняются.
type DisplaySettingsPatch struct {
	Theme      *string `json:"theme,omitempty" validate:"omitempty,oneof=light dark system"`
	Language   *string `json:"language,omitempty" validate:"omitempty,oneof=en es fr de pt"`
	Timezone   *string `json:"timezone,omitempty" validate:"omitempty,min=1"`
	DateFormat *string `json:"dateFormat,omitempty" validate:"omitempty,oneof=MM/DD/YYYY DD/MM/YYYY YYYY-MM-DD"`
	Currency   *string `json:"currency,omitempty" validate:"omitempty,oneof=USD EUR GBP"`
}

// Apply накладывает изменения на s.
func (p DisplaySettingsPatch) Apply(s DisplaySettings) DisplaySettings {
	if p.Theme != nil {
		s.Theme = *p.Theme
	}
	if p.Language != nil {
		s.Language = *p.Language
	}
	if p.Timezone != nil {
		s.Timezone = *p.Timezone
	}
	if p.DateFormat != nil {
		s.DateFormat = *p.DateFormat
	}
	if p.Currency != nil {
		s.Currency = *p.Currency
	}
	return s
}

// PrivacySettings — настройки приватности.
type PrivacySettings struct {
	ProfileVisibility string `json:"profileVisibility"`
	ShowEmail         bool   `json:"showEmail"`
	ShowPhone         bool   `json:"showPhone"`
	DataSharing       bool   `json:"dataSharing"`
	MarketingEmails   bool   `json:"marketingEmails"`
}

// DefaultPrivacySettings возвращает настройки приватности по умолчанию.
func DefaultPrivacySettings() PrivacySettings {
	return PrivacySettings{
		ProfileVisibility: "public",
		ShowEmail:         false,
		ShowPhone:         false,
		DataSharing:       false,
		MarketingEmails:   true,
	}
}

// PrivacySettingsPatch — частичное обновление; nil-поля не меняются.
type PrivacySettingsPatch struct {
	ProfileVisibility *string `json:"profileVisibility,omitempty" validate:"omitempty,oneof=public private business"`
	ShowEmail         *bool   `json:"showEmail,omitempty"`
	ShowPhone         *bool   `json:"showPhone,omitempty"`
	DataSharing       *bool   `json:"dataSharing,omitempty"`
	MarketingEmails   *bool   `json:"marketingEmails,omitempty"`
}

// Apply накладывает изменения на s.
func (p PrivacySettingsPatch) Apply(s PrivacySettings) PrivacySettings {
	if p.ProfileVisibility != nil {
		s.ProfileVisibility = *p.ProfileVisibility
	}
	if p.ShowEmail != nil {
		s.ShowEmail = *p.ShowEmail
	}
	if p.ShowPhone != nil {
		s.ShowPhone = *p.ShowPhone
	}
	if p.DataSharing != nil {
		s.DataSharing = *p.DataSharing
	}
	if p.MarketingEmails != nil {
		s.MarketingEmails = *p.MarketingEmails
	}
	return s
}
