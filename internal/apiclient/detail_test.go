package apiclient

import "testing"

func TestDecodeErrorDetail(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		kind    DetailKind
		message string
		fields  int
	}{
		{"строка", `{"detail": "Email already registered"}`, DetailMessage, "Email already registered", 0},
		{"массив FastAPI", `{"detail": [{"loc": ["body", "login"], "msg": "field required"}]}`, DetailFields, "", 1},
		{"массив строк", `{"detail": ["a", "b"]}`, DetailFields, "", 2},
		{"объект msg", `{"detail": {"msg": "Файл слишком большой"}}`, DetailMessage, "Файл слишком большой", 0},
		{"объект message", `{"detail": {"message": "Нет доступа"}}`, DetailMessage, "Нет доступа", 0},
		{"поле error", `{"error": "boom"}`, DetailMessage, "boom", 0},
		{"поле message", `{"message": "down for maintenance"}`, DetailMessage, "down for maintenance", 0},
		{"detail важнее error", `{"detail": "first", "error": "second"}`, DetailMessage, "first", 0},
		{"пустая строка", `{"detail": ""}`, DetailUnknown, "", 0},
		{"null", `{"detail": null}`, DetailUnknown, "", 0},
		{"число", `{"detail": 500}`, DetailUnknown, "", 0},
		{"пустой объект", `{"detail": {}}`, DetailUnknown, "", 0},
		{"не JSON", `Bad Gateway`, DetailMessage, "Bad Gateway", 0},
		{"пустое тело", ``, DetailUnknown, "", 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := DecodeErrorDetail([]byte(tc.body))
			if d.Kind != tc.kind {
				t.Fatalf("Kind: получили %q, ожидали %q", d.Kind, tc.kind)
			}
			if d.Message != tc.message {
				t.Errorf("Message: получили %q, ожидали %q", d.Message, tc.message)
			}
			if len(d.Fields) != tc.fields {
				t.Errorf("Fields: получили %d, ожидали %d", len(d.Fields), tc.fields)
			}
		})
	}
}

func TestDecodeErrorDetail_FieldLocation(t *testing.T) {
	d := DecodeErrorDetail([]byte(`{"detail": [{"loc": ["body", "password"], "msg": "ensure this value has at least 6 characters", "type": "value_error.any_str.min_length"}]}`))

	if len(d.Fields) != 1 {
		t.Fatalf("полей: %d", len(d.Fields))
	}
	f := d.Fields[0]
	if f.Field != "password" || f.Type != "value_error.any_str.min_length" {
		t.Errorf("поле разобрано неверно: %+v", f)
	}
	if want := "body → password: ensure this value has at least 6 characters"; f.String() != want {
		t.Errorf("String: %q", f.String())
	}
}

func TestFieldError_String(t *testing.T) {
	if got := (FieldError{Field: "login", Message: "обязательное поле"}).String(); got != "login: обязательное поле" {
		t.Errorf("с полем: %q", got)
	}
	if got := (FieldError{Message: "что-то не так"}).String(); got != "что-то не так" {
		t.Errorf("без поля: %q", got)
	}
}
