package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/suifan/internal/client/models"
)

const mistPerSUI = 1_000_000_000

// formatPrice renders a MIST amount in SUI without trailing zeros.
func formatPrice(mist uint64) string {
	whole, frac := mist/mistPerSUI, mist%mistPerSUI
	if frac == 0 {
		return strconv.FormatUint(whole, 10) + " SUI"
	}
	f := strings.TrimRight(fmt.Sprintf("%09d", frac), "0")
	return fmt.Sprintf("%d.%s SUI", whole, f)
}

func (a *App) printCreators(list []models.Creator) {
	if len(list) == 0 {
		a.printf("No creators found\n")
		return
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPRICE/MONTH\tDESCRIPTION")
	for _, c := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.ID, c.Name, formatPrice(c.Price), c.Description)
	}
	_ = tw.Flush()
}

func (a *App) Creators(ctx context.Context) error {
	list, err := a.deps.Catalog.ListAllCreators(ctx)
	if err != nil {
		return a.report(ctx, "creators", err)
	}
	a.printCreators(list)
	return nil
}

// Mine lists the creators registered by the unlocked wallet.
func (a *App) Mine(ctx context.Context) error {
	if err := a.requireWallet(); err != nil {
		return err
	}
	list, err := a.deps.Catalog.ListCreatorsOwnedBy(ctx, a.wallet.Address())
	if err != nil {
		return a.report(ctx, "mine", err)
	}
	a.printCreators(list)
	return nil
}

func (a *App) Contents(ctx context.Context, creatorID string) error {
	list, err := a.deps.Catalog.ListCreatorContent(ctx, creatorID)
	if err != nil {
		return a.report(ctx, "contents", err)
	}
	if len(list) == 0 {
		a.printf("No content published yet\n")
		return nil
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BLOB\tTITLE\tDESCRIPTION")
	for _, c := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.BlobID, c.Title, c.Description)
	}
	_ = tw.Flush()
	return nil
}

func (a *App) Subscriptions(ctx context.Context) error {
	if err := a.requireWallet(); err != nil {
		return err
	}
	list, err := a.deps.Catalog.ListEntitlements(ctx, a.wallet.Address(), "")
	if err != nil {
		return a.report(ctx, "subscriptions", err)
	}
	if len(list) == 0 {
		a.printf("No subscriptions\n")
		return nil
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATOR\tSINCE")
	for _, e := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.ID, e.CreatorID, e.Time().Format(time.DateTime))
	}
	_ = tw.Flush()
	return nil
}

// History prints the files published from this machine, newest first.
func (a *App) History(ctx context.Context) error {
	if a.deps.History == nil {
		a.printf("Publish history is disabled\n")
		return nil
	}
	list, err := a.deps.History.List(ctx)
	if err != nil {
		return a.report(ctx, "history", err)
	}
	if len(list) == 0 {
		a.printf("Nothing published yet\n")
		return nil
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tFILE\tSIZE\tENCRYPTED\tBLOB")
	for _, u := range list {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%t\t%s\n", u.CreatedAt.Local().Format(time.DateTime), u.Filename, u.Size, u.Encrypted, u.BlobID)
	}
	_ = tw.Flush()
	return nil
}
