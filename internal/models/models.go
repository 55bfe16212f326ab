package models

// All lists the relational models for AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&User{},
		&PasswordHistory{},
		&RevokedToken{},
		&FriendRequest{},
		&Friendship{},
		&Message{},
		&Notification{},
		&DeviceToken{},
		&SavedPost{},
	}
}
