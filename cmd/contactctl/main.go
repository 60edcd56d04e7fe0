// contactctl 是联系表单接口的命令行调用端，用于部署后的冒烟检查。
package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"portfolio/backend/internal/client"
	"portfolio/backend/internal/domain"
)

var (
	baseURL string
	timeout time.Duration
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "contactctl",
		Short:         "Call the contact relay API",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&baseURL, "url", "http://localhost:8080", "relay base URL")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")

	root.AddCommand(newSendCmd(), newHealthCmd())
	return root
}

// newClient 按 --url 和 --timeout 创建客户端
func newClient() *client.Client {
	return client.New(baseURL, client.WithHTTPClient(&http.Client{Timeout: timeout}))
}

func newSendCmd() *cobra.Command {
	var (
		sub domain.Submission
		raw bool
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Submit a contact message",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			c := newClient()

			// --raw 原样打印状态码和响应体
			if raw {
				resp, err := c.Post(ctx, sub)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d\n%s\n", resp.StatusCode, resp.Body)
				return nil
			}

			form := client.NewForm(c)
			defer form.Close()
			if err := form.SetValues(sub); err != nil {
				return err
			}

			err := form.Submit(ctx)
			t := table.NewWriter()
			t.SetStyle(table.StyleRounded)
			t.AppendHeader(table.Row{"Status", "Provider ID", "Detail"})
			if err != nil {
				t.AppendRow(table.Row{form.Status().String(), "", form.ErrorText()})
				t.AppendRow(table.Row{"", "", err.Error()})
			} else {
				id := ""
				if r := form.Result(); r != nil && r.Result != nil {
					id = r.Result.ID
				}
				t.AppendRow(table.Row{form.Status().String(), id, ""})
			}
			fmt.Fprintln(cmd.OutOrStdout(), t.Render())
			return err
		},
	}

	cmd.Flags().StringVar(&sub.Name, "name", "", "sender name")
	cmd.Flags().StringVar(&sub.Email, "email", "", "sender email")
	cmd.Flags().StringVar(&sub.Message, "message", "", "message body")
	cmd.Flags().BoolVar(&raw, "raw", false, "print the raw status code and body")
	return cmd
}

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show which relay secrets are configured",
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := newClient().Health(cmd.Context())
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetStyle(table.StyleRounded)
			t.AppendHeader(table.Row{"Setting", "Present"})
			t.AppendRow(table.Row{"hasApiKey", report.Env.HasAPIKey})
			t.AppendRow(table.Row{"hasFrom", report.Env.HasFrom})
			t.AppendRow(table.Row{"hasTo", report.Env.HasTo})
			if report.Note != "" {
				t.AppendFooter(table.Row{"note", report.Note})
			}
			fmt.Fprintln(cmd.OutOrStdout(), t.Render())
			return nil
		},
	}
}
