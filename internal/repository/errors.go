package repository

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"

	"github.com/hitoshi/warbler/internal/model"
)

// 制約名とAppErrorの対応
const (
	constraintUsernameKey = "users_username_key"
	constraintEmailKey    = "users_email_key"
)

// translateError はlib/pqのエラーをドメインのAppErrorに変換する。
// 対応するAppErrorがない場合はnilを返し、呼び出し側で元のエラーをラップする。
func translateError(err error) *model.AppError {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return nil
	}

	switch pqErr.Code {
	case pgerrcode.UniqueViolation:
		switch pqErr.Constraint {
		case constraintUsernameKey:
			return model.NewUsernameTakenError()
		case constraintEmailKey:
			return model.NewEmailTakenError()
		}
	case pgerrcode.NotNullViolation:
		return model.NewInvalidInputError(pqErr.Column, fmt.Sprintf("%s is required", pqErr.Column))
	case pgerrcode.CheckViolation:
		return model.NewInvalidInputError(checkConstraintField(pqErr.Constraint), "This field is required.")
	case pgerrcode.StringDataRightTruncationDataException:
		return model.NewInvalidInputError(pqErr.Column, "value too long")
	}
	return nil
}

func checkConstraintField(constraint string) string {
	switch constraint {
	case "users_username_not_blank":
		return "username"
	case "users_email_not_blank":
		return "email"
	case "messages_text_not_blank", "direct_messages_text_not_blank":
		return "text"
	}
	return ""
}

// wrapError はAppErrorに変換可能なエラーはAppErrorとして、それ以外は文脈付きでラップして返す。
func wrapError(err error, msg string) error {
	if appErr := translateError(err); appErr != nil {
		return appErr
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// isUUID はIDとして受け付け可能な形式かを判定する。
// uuid型カラムに不正な文字列を渡すとクエリ自体が失敗するため、事前に弾いて未検出扱いにする。
func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
