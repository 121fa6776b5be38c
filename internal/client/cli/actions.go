package cli

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/suifan/internal/client/services"
	"github.com/dmitrijs2005/suifan/internal/common"
	"github.com/dmitrijs2005/suifan/internal/filex"
)

var errBadPrice = errors.New("price must look like 1.5 (SUI, up to 9 decimals)")

// parsePrice converts a decimal SUI amount to MIST.
func parsePrice(s string) (uint64, error) {
	whole, frac, _ := strings.Cut(strings.TrimSpace(s), ".")
	if (whole == "" && frac == "") || len(frac) > 9 {
		return 0, errBadPrice
	}
	var w, f uint64
	var err error
	if whole != "" {
		if w, err = strconv.ParseUint(whole, 10, 64); err != nil {
			return 0, errBadPrice
		}
	}
	if frac != "" {
		if f, err = strconv.ParseUint(frac+strings.Repeat("0", 9-len(frac)), 10, 64); err != nil {
			return 0, errBadPrice
		}
	}
	if w > (^uint64(0)-f)/mistPerSUI {
		return 0, errBadPrice
	}
	return w*mistPerSUI + f, nil
}

// mediaTypes covers formats missing from the platform mime tables.
var mediaTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".webm": "video/webm",
	".mov":  "video/quicktime",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".ogg":  "audio/ogg",
}

// detectContentType prefers the extension and falls back to sniffing.
func detectContentType(path string, data []byte) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ct, ok := mediaTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return http.DetectContentType(data)
}

// Subscribe buys a subscription after showing the creator's price.
func (a *App) Subscribe(ctx context.Context, creatorID string) error {
	if err := a.requireWallet(); err != nil {
		return err
	}
	creator, err := a.deps.Catalog.GetCreator(ctx, creatorID)
	if err != nil {
		return a.report(ctx, "subscribe", err)
	}
	ok, err := Confirm(a.reader, fmt.Sprintf("Subscribe to %s for %s?", creator.Name, formatPrice(creator.Price)), true, a.out)
	if err != nil {
		return err
	}
	if !ok {
		return errDeclined
	}

	digest, err := a.deps.Marketplace.Subscribe(ctx, a.wallet, creatorID)
	if err != nil {
		return a.report(ctx, "subscribe", err)
	}
	a.printf("Subscribed to %s (tx %s)\n", creator.Name, digest)
	return nil
}

// Register creates a creator profile owned by the unlocked wallet.
func (a *App) Register(ctx context.Context) error {
	if err := a.requireWallet(); err != nil {
		return err
	}

	name, err := getSimpleText(a.reader, "Creator name", a.out)
	if err != nil {
		return err
	}
	description, err := GetMultiline(a.reader, "Description", a.out)
	if err != nil {
		return err
	}
	priceText, err := getSimpleText(a.reader, "Monthly price in SUI", a.out)
	if err != nil {
		return err
	}
	price, err := parsePrice(priceText)
	if err != nil {
		a.printf("Error: %s\n", err)
		return err
	}
	avatar, err := getSimpleText(a.reader, "Avatar image path (empty to skip)", a.out)
	if err != nil {
		return err
	}

	req := services.CreateCreatorRequest{Name: name, Description: description, Price: price}
	if avatar != "" {
		if req.Image, err = readFile(avatar); err != nil {
			return a.report(ctx, "register", err)
		}
	}

	digest, err := a.deps.Marketplace.CreateCreator(ctx, a.wallet, req)
	if err != nil {
		return a.report(ctx, "register", err)
	}
	a.printf("Registered %s (tx %s)\n", name, digest)
	return nil
}

// Publish stores a file under the wallet's creator profile. Files are
// encrypted for subscribers unless the user opts out.
func (a *App) Publish(ctx context.Context, path string) error {
	if err := a.requireWallet(); err != nil {
		return err
	}
	data, err := readFile(path)
	if err != nil {
		return a.report(ctx, "publish", err)
	}

	title, err := getSimpleText(a.reader, fmt.Sprintf("Title (empty for %q)", filepath.Base(path)), a.out)
	if err != nil {
		return err
	}
	if title == "" {
		title = filepath.Base(path)
	}
	description, err := GetMultiline(a.reader, "Description", a.out)
	if err != nil {
		return err
	}
	encrypt, err := Confirm(a.reader, "Encrypt for subscribers only?", true, a.out)
	if err != nil {
		return err
	}

	res, err := a.deps.Publication.Publish(ctx, a.wallet, services.PublishRequest{
		Title:        title,
		Description:  description,
		Filename:     filepath.Base(path),
		ContentType:  detectContentType(path, data),
		Data:         data,
		Encrypt:      encrypt,
		ViaPublisher: a.opts.UsePublisher,
	})
	if err != nil {
		return a.report(ctx, "publish", err)
	}

	a.printf("Published %s (%d bytes)\n", title, res.Size)
	a.printf("  blob:     %s\n", res.BlobID)
	if res.EncryptionID != "" {
		a.printf("  identity: %s\n", res.EncryptionID)
	}
	if res.AggregatorURL != "" {
		a.printf("  url:      %s\n", res.AggregatorURL)
	}
	if res.Degraded {
		a.printf("  note: the storage object id was not reported, the blob id is used instead\n")
	}
	return nil
}

// Play decrypts subscribed content and optionally saves it to out.
func (a *App) Play(ctx context.Context, creatorID, blobID, out string) error {
	if err := a.requireWallet(); err != nil {
		return err
	}
	url, err := a.deps.Player.Play(ctx, a.wallet, services.DecryptRequest{BlobID: blobID, CreatorID: creatorID})
	if err != nil {
		return a.report(ctx, "play", err)
	}
	res, err := a.deps.Media.Get(url)
	if err != nil {
		return a.report(ctx, "play", err)
	}
	a.printf("Ready: %s (%s, %d bytes)\n", url, res.ContentType, len(res.Data))

	if out == "" {
		return nil
	}
	dst, err := filex.ExpandHome(out)
	if err != nil {
		return a.report(ctx, "play", err)
	}
	if err := filex.WriteFileAtomic(dst, res.Data, 0o600); err != nil {
		return a.report(ctx, "play", err)
	}
	a.printf("Saved to %s\n", dst)
	return nil
}

func readFile(path string) ([]byte, error) {
	p, err := filex.ExpandHome(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidArgument, err)
	}
	return data, nil
}
