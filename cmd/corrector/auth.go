package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rx3lixir/corrector-client/internal/guard"
	"github.com/rx3lixir/corrector-client/internal/models"
)

// prompt читает строку из in, если значение не передано флагом
func prompt(in *bufio.Reader, out io.Writer, label, value string) (string, error) {
	if value != "" {
		return value, nil
	}
	fmt.Fprintf(out, "%s: ", label)
	line, err := in.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read %s: %w", label, err)
	}
	return strings.TrimSpace(line), nil
}

func newLoginCmd() *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Войти в сервис",
		Long: `Вход по логину и паролю. Токен сохраняется в хранилище из конфигурации
и используется всеми следующими командами до выхода или истечения сессии.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := bufio.NewReader(cmd.InOrStdin())
			out := cmd.OutOrStdout()

			var err error
			if username, err = prompt(in, out, "Логин", username); err != nil {
				return err
			}
			if password, err = prompt(in, out, "Пароль", password); err != nil {
				return err
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			profile, err := a.session.Login(cmd.Context(), username, password)
			if err != nil {
				return err
			}

			colorGreen.Fprintf(out, "✅ Добро пожаловать, %s!\n", profile.DisplayName())
			fmt.Fprintf(out, "Дальше: %s\n", commandFor(a.guard.AfterLogin(guard.LoginPath)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "логин (email)")
	cmd.Flags().StringVarP(&password, "password", "p", "", "пароль; без флага будет запрошен")
	return cmd
}

func newRegisterCmd() *cobra.Command {
	var (
		req        models.RegisterRequest
		patronymic string
		telegram   string
	)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Зарегистрироваться",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := bufio.NewReader(cmd.InOrStdin())
			out := cmd.OutOrStdout()

			var err error
			if req.Login, err = prompt(in, out, "Логин", req.Login); err != nil {
				return err
			}
			if req.Password, err = prompt(in, out, "Пароль", req.Password); err != nil {
				return err
			}
			if patronymic != "" {
				req.PatronomicName = &patronymic
			}
			if telegram != "" {
				tg := strings.TrimPrefix(telegram, "@")
				req.TgUsername = &tg
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			profile, err := a.session.Register(cmd.Context(), req)
			if err != nil {
				return err
			}

			colorGreen.Fprintf(out, "✅ Аккаунт создан: %s\n", profile.DisplayName())
			return nil
		},
	}

	cmd.Flags().StringVarP(&req.Login, "login", "l", "", "логин (email)")
	cmd.Flags().StringVarP(&req.Password, "password", "p", "", "пароль, не короче 6 символов")
	cmd.Flags().StringVar(&req.FirstName, "first-name", "", "имя")
	cmd.Flags().StringVar(&req.SurnameName, "surname", "", "фамилия")
	cmd.Flags().StringVar(&patronymic, "patronymic", "", "отчество")
	cmd.Flags().StringVar(&telegram, "telegram", "", "имя пользователя в Telegram")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Выйти и удалить сохраненный токен",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.session.Logout(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Вы вышли из аккаунта")
			return nil
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Показать текущего пользователя",
		Long: `Показывает кэшированный профиль. С --refresh профиль перечитывается с сервера,
иначе сетевых запросов нет.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.require(guard.ProfilePath); err != nil {
				return err
			}

			profile := a.session.CurrentUser()
			if refresh || profile == nil {
				if profile, err = a.session.Refresh(cmd.Context()); err != nil {
					return err
				}
			}

			renderProfile(cmd.OutOrStdout(), profile, a.cfg.Telegram)
			return nil
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "перечитать профиль с сервера")
	return cmd
}
