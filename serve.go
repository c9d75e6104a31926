package main

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"bookclub-catalog/api"
	"bookclub-catalog/catalog"
	"bookclub-catalog/config"
	"bookclub-catalog/storage"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the catalog as a read-only JSON API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if logrus.GetLevel() < logrus.DebugLevel {
				gin.SetMode(gin.ReleaseMode)
			}

			secret := a.cfg.JWT.Secret
			if secret == "" {
				secret = randomSecret()
				logrus.Warn("jwt.secret is not set, using a random secret; tokens will not survive a restart")
			}

			covers := newCoverCache(a.cfg)
			covers.Preload()

			srv := api.NewServer(a.manager, covers, api.NewTokenIssuer(secret, a.cfg.JWT.ExpiresIn))
			return srv.Run(a.cfg.Server.Address())
		},
	}
}

// newCoverCache picks the MinIO bucket when one is configured and the local
// directory otherwise. A bucket that cannot be reached falls back to the directory.
func newCoverCache(cfg *config.Config) *catalog.CoverCache {
	var source catalog.CoverSource = storage.NewDirSource(cfg.Covers.Dir)
	if m := cfg.Covers.MinIO; m.Enabled() {
		bucket, err := storage.NewMinIOSource(m.Endpoint, m.AccessKey, m.SecretKey, m.Bucket, m.UseSSL)
		if err != nil {
			logrus.WithError(err).Warn("cover bucket unavailable, using local covers")
		} else {
			source = bucket
		}
	}
	return catalog.NewCoverCache(source, cfg.Covers.Mapping(), cfg.Covers.Placeholder)
}

func randomSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		logrus.WithError(err).Fatal("generate jwt secret")
	}
	return hex.EncodeToString(buf)
}
