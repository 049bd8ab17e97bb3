// Package cli — командная строка клиента дашборда: вход и выход, баланс
// кредитов, покупка пакетов и управление кампаниями.
package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Execute запускает корневую команду.
func Execute(ctx context.Context) error {
	return newRootCmd(viper.New()).ExecuteContext(ctx)
}

type wireFunc func(v *viper.Viper, out, errOut io.Writer) (*app, error)

func newRootCmd(v *viper.Viper) *cobra.Command {
	return newRootCmdWith(v, wireApp)
}

func newRootCmdWith(v *viper.Viper, wire wireFunc) *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "dashboard",
		Short:         "Campaign dashboard client: session, credits and campaigns",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			wired, err := wire(v, cmd.OutOrStdout(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			*a = *wired
			return a.store.Rehydrate(cmd.Context())
		},
	}

	rootCmd.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newSessionCmd(a),
		newCreditsCmd(a),
		newCampaignsCmd(a),
	)

	return rootCmd
}
