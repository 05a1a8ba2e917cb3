package models

// AllModels lists every model in migration order
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&Wallet{},
		&Transaction{},
		&Service{},
		&Partner{},
		&ServiceProvider{},
		&PartnerPincode{},
		&Order{},
		&Review{},
		&NotificationDelivery{},
	}
}
