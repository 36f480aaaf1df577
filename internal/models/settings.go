package models

// Setting keys known to the platform
const (
	SettingBankName          = "bank_name"
	SettingBankAccountNumber = "bank_account_number"
	SettingBankAccountName   = "bank_account_name"
	SettingContactEmail      = "contact_email"
)

// Setting is a site-wide key/value pair
type Setting struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// UpdateSettingsRequest replaces the values of the given keys
type UpdateSettingsRequest struct {
	Settings map[string]string `json:"settings" validate:"required,min=1,dive,keys,required,max=64,endkeys,max=2000"`
}
