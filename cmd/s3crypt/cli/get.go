package cli

import (
	"io"
	"os"

	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get <key> <file>",
	Short: "Decrypt an object and write its plaintext to the given local file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, path := args[0], args[1]

		ctx := cmd.Context()
		c, err := buildClient(ctx)
		if err != nil {
			return err
		}

		body, err := c.Get(ctx, key)
		if err != nil {
			return err
		}
		defer body.Close()

		out, err := os.Create(path)
		if err != nil {
			return err
		}
		defer out.Close()

		if _, err := io.Copy(out, body); err != nil {
			return err
		}
		cmd.Printf("decrypted %s -> %s\n", key, path)
		return nil
	},
}
