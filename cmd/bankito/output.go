package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/iho/bankito/internal/domain"
	"github.com/iho/bankito/internal/usecase"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func printAccounts(w io.Writer, accounts []*domain.Account) error {
	if len(accounts) == 0 {
		_, err := fmt.Fprintln(w, "no accounts")
		return err
	}

	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tNAME\tBALANCE\tCURRENCY\tSTATUS")
	for _, a := range accounts {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", a.ID, a.Name, a.DisplayBalance(), a.Currency, a.Status)
	}
	return tw.Flush()
}

func printEntries(w io.Writer, entries []*domain.Entry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "no transactions")
		return err
	}

	tw := newTable(w)
	fmt.Fprintln(tw, "DATE\tREFERENCE\tTYPE\tAMOUNT\tBALANCE\tDESCRIPTION")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.CreatedAt.Format("2006-01-02 15:04:05"), e.ReferenceID, e.Type,
			domain.FormatAmount(e.SignedAmount()), domain.FormatAmount(e.BalanceAfter), e.Description)
	}
	return tw.Flush()
}

func printTransferLines(w io.Writer, lines []*domain.TransferLine) error {
	if len(lines) == 0 {
		_, err := fmt.Fprintln(w, "no transfers")
		return err
	}

	tw := newTable(w)
	fmt.Fprintln(tw, "DATE\tREFERENCE\tTYPE\tORIGIN\tDESTINATION\tAMOUNT\tBALANCE\tDESCRIPTION")
	for _, l := range lines {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			l.CreatedAt.Format("2006-01-02 15:04:05"), l.ReferenceID, l.Type, l.Origin, l.Destination,
			domain.FormatAmount(l.Amount), domain.FormatAmount(l.BalanceAfter), l.Description)
	}
	return tw.Flush()
}

func printTransferResult(w io.Writer, account *domain.Account) error {
	_, err := fmt.Fprintf(w, "transfer committed: %s balance is now %s %s\n",
		account.Name, account.DisplayBalance(), account.Currency)
	return err
}

func printReport(w io.Writer, report *usecase.LedgerReport) error {
	if report.Consistent() {
		_, err := fmt.Fprintf(w, "ledger consistent: total balance %s\n", domain.FormatAmount(report.TotalBalance))
		return err
	}

	fmt.Fprintf(w, "ledger INCONSISTENT: %d unpaired references\n", len(report.UnpairedReferences))
	for _, ref := range report.UnpairedReferences {
		fmt.Fprintf(w, "  %s\n", ref)
	}
	return nil
}
