package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/hitoshi/holograma/internal/model"
)

// formMemoryLimit はmultipartフォームをメモリ上に保持する上限。超えた分は一時ファイルに書き出される。
const formMemoryLimit = 8 << 20

// maxArticleFormSize は記事の作成・更新フォームのボディ上限。メディアは別途アップロードされるため本文とIDのみを想定する。
const maxArticleFormSize = formMemoryLimit

// validate はリクエスト入力の検証に使う共有バリデーター。スレッドセーフ。
var validate = validator.New(validator.WithRequiredStructEnabled())

// mediaPositionEntry はフォームで送られる {id, position} のJSON。
type mediaPositionEntry struct {
	ID       string `json:"id" validate:"required,uuid"`
	Position *int   `json:"position" validate:"required,min=0"`
}

// parseForm はmultipartまたはURLエンコードのフォームを解析する。
// ボディはmaxArticleFormSizeまでに制限し、超えた場合は*http.MaxBytesErrorを返す。
func parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxArticleFormSize)
	err := r.ParseMultipartForm(formMemoryLimit)
	if errors.Is(err, http.ErrNotMultipart) {
		return r.ParseForm()
	}
	return err
}

// formValues は "name[]" と "name" の両方のキーで送られた値をまとめて返す。
func formValues(r *http.Request, name string) []string {
	values := append([]string{}, r.PostForm[name+"[]"]...)
	return append(values, r.PostForm[name]...)
}

// parseMediaPositions は繰り返し送られた {id, position} のJSON文字列を解析・検証する。
func parseMediaPositions(r *http.Request, field string) ([]model.MediaPosition, error) {
	raws := formValues(r, field)
	positions := make([]model.MediaPosition, 0, len(raws))
	for i, raw := range raws {
		var entry mediaPositionEntry
		dec := json.NewDecoder(strings.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&entry); err != nil {
			return nil, model.NewInvalidMediaPayloadError(field, fmt.Sprintf("%d番目のJSONを解析できません", i+1))
		}
		if err := validate.Struct(entry); err != nil {
			return nil, model.NewInvalidMediaPayloadError(field, describeValidationError(i, err))
		}
		positions = append(positions, model.MediaPosition{ID: entry.ID, Position: *entry.Position})
	}
	return positions, nil
}

// parseMediaIDs は繰り返し送られたメディアIDを検証して返す。
func parseMediaIDs(r *http.Request, field string) ([]string, error) {
	raws := formValues(r, field)
	ids := make([]string, 0, len(raws))
	for i, raw := range raws {
		id := strings.TrimSpace(raw)
		if err := validate.Var(id, "required,uuid"); err != nil {
			return nil, model.NewInvalidMediaPayloadError(field, fmt.Sprintf("%d番目のメディアIDが不正です", i+1))
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// describeValidationError は検証エラーを利用者向けの短い説明に変換する。
func describeValidationError(index int, err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		switch fe.Field() {
		case "ID":
			return fmt.Sprintf("%d番目のidが不正です", index+1)
		case "Position":
			return fmt.Sprintf("%d番目のpositionは0以上の整数で指定してください", index+1)
		}
	}
	return fmt.Sprintf("%d番目の指定が不正です", index+1)
}
