package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var putCmd = &cobra.Command{
	Use:   "put <key> <file>",
	Short: "Encrypt a local file and store it under the given object key",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, path := args[0], args[1]

		ctx := cmd.Context()
		c, err := buildClient(ctx)
		if err != nil {
			return err
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		etag, err := c.Put(ctx, key, f)
		if err != nil {
			return err
		}
		cmd.Printf("stored %s (etag %s)\n", key, etag)
		return nil
	},
}
