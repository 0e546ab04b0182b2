package cli

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/securestor/s3crypt/internal/client"
	"github.com/securestor/s3crypt/internal/crypto/cryptoerr"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a thin HTTP gateway exposing encrypted put/get over the configured store",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, err := buildClient(ctx)
		if err != nil {
			return err
		}
		return runGateway(c, serveAddr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "address to listen on")
	rootCmd.AddCommand(serveCmd)
}

func runGateway(c *client.Client, addr string) error {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "PUT"},
		AllowHeaders: []string{"Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	r.PUT("/objects/*key", func(ctx *gin.Context) {
		key := ctx.Param("key")
		etag, err := c.Put(ctx.Request.Context(), key, ctx.Request.Body)
		if err != nil {
			writeError(ctx, err)
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"key": key, "etag": etag})
	})

	r.GET("/objects/*key", func(ctx *gin.Context) {
		key := ctx.Param("key")
		body, err := c.Get(ctx.Request.Context(), key)
		if err != nil {
			writeError(ctx, err)
			return
		}
		defer body.Close()
		ctx.Status(http.StatusOK)
		io.Copy(ctx.Writer, body)
	})

	return r.Run(addr)
}

func writeError(ctx *gin.Context, err error) {
	status := http.StatusInternalServerError
	if cryptoerr.Is(err, cryptoerr.NotEncrypted) || cryptoerr.Is(err, cryptoerr.InvalidArgument) {
		status = http.StatusBadRequest
	}
	if cryptoerr.Is(err, cryptoerr.PolicyViolation) || cryptoerr.Is(err, cryptoerr.KeyCommitmentMismatch) {
		status = http.StatusForbidden
	}
	ctx.JSON(status, gin.H{"error": err.Error()})
}
