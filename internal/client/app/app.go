// Package app wires configuration, ledger access, storage, key servers and
// local state into the interactive client and runs it.
package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/suifan/internal/client/blobstore"
	"github.com/dmitrijs2005/suifan/internal/client/cli"
	"github.com/dmitrijs2005/suifan/internal/client/config"
	"github.com/dmitrijs2005/suifan/internal/client/ledger"
	"github.com/dmitrijs2005/suifan/internal/client/media"
	"github.com/dmitrijs2005/suifan/internal/client/repositories"
	"github.com/dmitrijs2005/suifan/internal/client/repositories/uploads"
	"github.com/dmitrijs2005/suifan/internal/client/seal"
	"github.com/dmitrijs2005/suifan/internal/client/services"
	"github.com/dmitrijs2005/suifan/internal/client/session"
	"github.com/dmitrijs2005/suifan/internal/client/upload"
	"github.com/dmitrijs2005/suifan/internal/filex"
	"github.com/dmitrijs2005/suifan/internal/logging"
)

type App struct {
	config *config.Config
	logger logging.Logger
	cli    *cli.App

	closers []func() error
}

// NewApp builds every client component from c. Key servers missing a URL or
// public key are resolved from the ledger, so this needs a reachable node.
func NewApp(ctx context.Context, c *config.Config, in io.Reader, out, logOut io.Writer) (*App, error) {
	logger := logging.New(logOut, c.LogLevel)
	a := &App{config: c, logger: logger}

	httpClient := &http.Client{}
	rpc := ledger.NewRPCClient(c.RPCURL, httpClient)
	exec := ledger.NewExecutor(rpc, ledger.ExecutorConfig{
		GasBudget:    c.GasBudget,
		PollInterval: c.FinalityPollInterval,
		Timeout:      c.FinalityTimeout,
	}, logger)

	keys, err := a.initKeyServers(ctx, rpc)
	if err != nil {
		return nil, err
	}

	downloader, err := a.initAggregators(ctx, httpClient)
	if err != nil {
		a.Close()
		return nil, err
	}

	history, err := a.initHistory(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	publisher := blobstore.NewPublisher(c.PublisherURL, httpClient, logger)
	pipeline := upload.NewPipeline(exec, blobstore.NewNodeClient(httpClient), upload.Config{
		Contract:     upload.Contract{Package: c.WalrusPackageID, SystemObject: c.WalrusSystemObject},
		Nodes:        c.StorageNodes,
		DataShards:   c.DataShards,
		ParityShards: c.ParityShards,
	}, logger, upload.WithLinker(downloader.URL))

	registry := media.NewRegistry()
	catalog := services.NewCatalogService(rpc, c.PackageID, c.AllCreatorsObject, logger)
	marketplace := services.NewMarketplaceService(exec, catalog, publisher, c.PackageID, c.AllCreatorsObject, c.StorageEpochs, logger)

	publication := services.NewPublicationService(services.PublicationDeps{
		Catalog:     catalog,
		Marketplace: marketplace,
		Encrypter:   keys,
		Uploader:    pipeline,
		Publisher:   publisher,
		History:     history,
	}, services.PublicationConfig{
		PackageID: c.PackageID,
		Threshold: c.Threshold,
		Epochs:    c.StorageEpochs,
		Deletable: c.Deletable,
		Link:      downloader.URL,
	}, logger)

	retrieval := services.NewRetrievalService(services.RetrievalDeps{
		Catalog:    catalog,
		Sessions:   session.NewManager(c.SessionTTL, logger),
		Downloader: downloader,
		Keys:       keys,
		Resolver:   rpc,
		Media:      registry,
	}, services.RetrievalConfig{PackageID: c.PackageID}, logger)

	a.cli = cli.NewApp(cli.Deps{
		Catalog:     catalog,
		Marketplace: marketplace,
		Publication: publication,
		Player:      services.NewPlayer(retrieval, registry),
		Media:       registry,
		History:     history,
	}, cli.Options{
		KeystorePath: c.KeystorePath,
		UsePublisher: len(c.StorageNodes) == 0,
	}, in, out, logger)

	return a, nil
}

func (a *App) initKeyServers(ctx context.Context, rpc *ledger.RPCClient) (*seal.Client, error) {
	infos := make([]seal.KeyServerInfo, 0, len(a.config.KeyServers))
	for _, ks := range a.config.KeyServers {
		info := seal.KeyServerInfo{ObjectID: ks.ObjectID, URL: ks.URL, Weight: ks.Weight}
		if ks.PublicKey != "" {
			pk, err := seal.ParsePublicKey(ks.PublicKey)
			if err != nil {
				return nil, fmt.Errorf("key server %s public key: %w", ks.ObjectID, err)
			}
			info.PublicKey = pk
		}
		infos = append(infos, info)
	}

	infos, err := seal.ResolveKeyServers(ctx, rpc, infos)
	if err != nil {
		return nil, fmt.Errorf("resolve key servers: %w", err)
	}
	keys, err := seal.NewClient(infos, a.logger)
	if err != nil {
		return nil, fmt.Errorf("key servers: %w", err)
	}
	a.closers = append(a.closers, keys.Close)
	return keys, nil
}

// initAggregators builds the download mirrors, adding the S3 bucket when
// one is configured.
func (a *App) initAggregators(ctx context.Context, httpClient *http.Client) (*blobstore.Aggregators, error) {
	mirrors := blobstore.NewHTTPMirrors(a.config.AggregatorURLs)
	if s := a.config.S3; s.Enabled() {
		m, err := blobstore.NewS3Mirror(ctx, blobstore.S3Options{
			Endpoint:        s.Endpoint,
			Region:          s.Region,
			Bucket:          s.Bucket,
			AccessKeyID:     s.AccessKeyID,
			SecretAccessKey: s.SecretAccessKey,
		})
		if err != nil {
			return nil, err
		}
		mirrors = append(mirrors, m)
	}
	return blobstore.NewAggregators(mirrors, a.logger,
		blobstore.WithTimeout(a.config.DownloadTimeout),
		blobstore.WithHTTPClient(httpClient),
	), nil
}

// initHistory opens the local publish history. An empty path disables it.
func (a *App) initHistory(ctx context.Context) (uploads.Repository, error) {
	if a.config.HistoryDBPath == "" {
		return nil, nil
	}
	path, err := filex.ExpandHome(a.config.HistoryDBPath)
	if err != nil {
		return nil, err
	}
	if err := filex.EnsureParentDir(path); err != nil {
		return nil, err
	}
	repos, err := repositories.InitDatabase(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("history db: %w", err)
	}
	a.closers = append(a.closers, repos.Close)
	return repos.Uploads, nil
}

func (a *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run blocks in the REPL until the user exits or a signal arrives.
func (a *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	a.initSignalHandler(cancelFunc)
	a.logger.Info(ctx, "starting client", "rpc", a.config.RPCURL, "package", a.config.PackageID)

	a.cli.Run(ctx)
	a.Close()
}

// Close releases connections and the history database.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn(context.Background(), "close", "error", err)
		}
	}
	a.closers = nil
}
