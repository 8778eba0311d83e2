package repository

// Models lists every GORM model, in dependency order, for AutoMigrate in development and tests.
func Models() []any {
	return []any{
		&UserModel{},
		&CarModel{},
		&ServiceModel{},
		&PackModel{},
		&PackServiceModel{},
		&PartModel{},
		&InventoryLogModel{},
		&BookingModel{},
		&BookingTechnicianModel{},
		&ChangeRequestModel{},
		&JobModel{},
		&JobNoteModel{},
		&PartsUsedModel{},
		&QuoteModel{},
		&BillingModel{},
		&PaymentModel{},
		&NotificationModel{},
	}
}
