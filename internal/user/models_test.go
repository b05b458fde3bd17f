package user

import (
	"strings"
	"testing"
)

func TestValidateCreate(t *testing.T) {
	valid := CreateUserInput{
		Username: "alice-chen",
		Name:     "Alice Chen",
		Email:    "alice@example.com",
		Password: "correct horse",
	}

	tests := []struct {
		name    string
		mutate  func(*CreateUserInput)
		wantErr error
	}{
		{name: "valid input", mutate: func(in *CreateUserInput) {}, wantErr: nil},
		{
			name:    "username too short",
			mutate:  func(in *CreateUserInput) { in.Username = "abc" },
			wantErr: ErrUsernameInvalid,
		},
		{
			name:    "username too long",
			mutate:  func(in *CreateUserInput) { in.Username = "abcdefghijklmnopqrstu" },
			wantErr: ErrUsernameInvalid,
		},
		{
			name:    "username all whitespace",
			mutate:  func(in *CreateUserInput) { in.Username = "        " },
			wantErr: ErrUsernameInvalid,
		},
		{
			name:    "multibyte username counts runes not bytes",
			mutate:  func(in *CreateUserInput) { in.Username = "六文字の名前" },
			wantErr: nil,
		},
		{
			name:    "multibyte username still too short",
			mutate:  func(in *CreateUserInput) { in.Username = "五字の名前" },
			wantErr: ErrUsernameInvalid,
		},
		{
			name:    "multibyte name within limit",
			mutate:  func(in *CreateUserInput) { in.Name = strings.Repeat("陳", 30) },
			wantErr: nil,
		},
		{
			name:    "name too long",
			mutate:  func(in *CreateUserInput) { in.Name = "0123456789012345678901234567890" },
			wantErr: ErrNameInvalid,
		},
		{
			name:    "missing email",
			mutate:  func(in *CreateUserInput) { in.Email = "  " },
			wantErr: ErrEmailRequired,
		},
		{
			name:    "weak password",
			mutate:  func(in *CreateUserInput) { in.Password = "short" },
			wantErr: ErrPasswordTooWeak,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			if err := ValidateCreate(in); err != tt.wantErr {
				t.Errorf("ValidateCreate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
