package support

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/receiptminer/internal/export"
	"github.com/MeKo-Tech/receiptminer/internal/receipt"
	"github.com/MeKo-Tech/receiptminer/internal/validate"
)

const epsilon = 1e-9

func parseAmount(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return v, nil
}

// paymentField returns a pointer to the payment field with the given JSON
// name.
func paymentField(p *receipt.PaymentInfo, name string) (*float64, error) {
	fields := map[string]*float64{
		"total_amount":   &p.Total,
		"tax_amount":     &p.Tax,
		"non_tax_amount": &p.NonTax,
		"cashless":       &p.Cashless,
		"cash":           &p.Cash,
		"paid_cash":      &p.PaidCash,
		"change":         &p.Change,
		"bonus":          &p.Bonus,
		"prepayment":     &p.Prepayment,
		"credit":         &p.Credit,
	}
	f, ok := fields[name]
	if !ok {
		return nil, fmt.Errorf("unknown payment field %q", name)
	}
	return f, nil
}

func (testCtx *TestContext) aReceiptWithItems(table *godog.Table) error {
	if len(table.Rows) < 2 {
		return fmt.Errorf("items table needs a header and at least one row")
	}
	for _, row := range table.Rows[1:] {
		if len(row.Cells) != 4 {
			return fmt.Errorf("item rows need name, quantity, price and amount")
		}
		var nums [3]float64
		for i := range nums {
			v, err := parseAmount(row.Cells[i+1].Value)
			if err != nil {
				return err
			}
			nums[i] = v
		}
		testCtx.Record.Items = append(testCtx.Record.Items, receipt.LineItem{
			Name: row.Cells[0].Value, Quantity: nums[0], Price: nums[1], Amount: nums[2],
		})
	}
	return nil
}

func (testCtx *TestContext) thePayment(table *godog.Table) error {
	for _, row := range table.Rows {
		if len(row.Cells) != 2 || row.Cells[0].Value == "field" {
			continue
		}
		f, err := paymentField(&testCtx.Record.Payment, row.Cells[0].Value)
		if err != nil {
			return err
		}
		if *f, err = parseAmount(row.Cells[1].Value); err != nil {
			return err
		}
	}
	return nil
}

func (testCtx *TestContext) theToleranceIs(s string) error {
	v, err := parseAmount(s)
	if err != nil {
		return err
	}
	testCtx.Tolerance = v
	return nil
}

func (testCtx *TestContext) theReceiptIsValidatedInMode(mode string) error {
	m, err := validate.ParseMode(mode)
	if err != nil {
		return err
	}
	testCtx.Mode = m
	testCtx.Original = testCtx.Record.Clone()
	testCtx.LastErrors = testCtx.validator().Validate(testCtx.Record)
	testCtx.Validated = true
	return nil
}

func (testCtx *TestContext) thereShouldBeNoInconsistencies() error {
	if len(testCtx.LastErrors) != 0 {
		return fmt.Errorf("expected no inconsistencies, got %v", testCtx.LastErrors)
	}
	return nil
}

func (testCtx *TestContext) theInconsistenciesShouldBe(list string) error {
	var want []string
	for _, c := range strings.Split(list, ",") {
		want = append(want, strings.TrimSpace(c))
	}
	var got []string
	for _, c := range testCtx.LastErrors.Categories() {
		got = append(got, string(c))
	}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		return fmt.Errorf("expected inconsistencies %v, got %v", want, got)
	}
	return nil
}

func (testCtx *TestContext) inconsistencyShouldMention(n int, text string) error {
	if n < 1 || n > len(testCtx.LastErrors) {
		return fmt.Errorf("no inconsistency %d among %d", n, len(testCtx.LastErrors))
	}
	if msg := testCtx.LastErrors[n-1].Message; !strings.Contains(msg, text) {
		return fmt.Errorf("inconsistency %d %q does not mention %q", n, msg, text)
	}
	return nil
}

func (testCtx *TestContext) inconsistencyShouldBeCorrected(n int, not string) error {
	if n < 1 || n > len(testCtx.LastErrors) {
		return fmt.Errorf("no inconsistency %d among %d", n, len(testCtx.LastErrors))
	}
	want := not == ""
	if got := testCtx.LastErrors[n-1].CorrectionApplied; got != want {
		return fmt.Errorf("inconsistency %d: correction applied = %v, want %v", n, got, want)
	}
	return nil
}

func (testCtx *TestContext) itemShouldHave(n int, quantity, price, amount string) error {
	if n < 1 || n > len(testCtx.Record.Items) {
		return fmt.Errorf("no item %d among %d", n, len(testCtx.Record.Items))
	}
	item := testCtx.Record.Items[n-1]
	for _, c := range []struct {
		name string
		got  float64
		want string
	}{{"quantity", item.Quantity, quantity}, {"price", item.Price, price}, {"amount", item.Amount, amount}} {
		want, err := parseAmount(c.want)
		if err != nil {
			return err
		}
		if math.Abs(c.got-want) > epsilon {
			return fmt.Errorf("item %d %s = %v, want %v", n, c.name, c.got, want)
		}
	}
	return nil
}

func (testCtx *TestContext) thePaymentFieldShouldBe(name, value string) error {
	f, err := paymentField(&testCtx.Record.Payment, name)
	if err != nil {
		return err
	}
	want, err := parseAmount(value)
	if err != nil {
		return err
	}
	if math.Abs(*f-want) > epsilon {
		return fmt.Errorf("%s = %v, want %v", name, *f, want)
	}
	return nil
}

func (testCtx *TestContext) theRecordShouldBeUnchanged() error {
	if !testCtx.Validated {
		return fmt.Errorf("the receipt was not validated")
	}
	got, err := recordBytes(testCtx.Record)
	if err != nil {
		return err
	}
	want, err := recordBytes(testCtx.Original)
	if err != nil {
		return err
	}
	if !bytes.Equal(got, want) {
		return fmt.Errorf("record changed:\n%s\nwas:\n%s", got, want)
	}
	return nil
}

func (testCtx *TestContext) theRecordSurvivesARoundTrip(format string) error {
	f, err := export.ParseFormat(format)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := export.Write(&buf, f, []export.Entry{{Source: "scenario.png", Record: testCtx.Record}}); err != nil {
		return err
	}
	entries, err := export.Read(&buf, f)
	if err != nil {
		return err
	}
	if len(entries) != 1 || entries[0].Record == nil {
		return fmt.Errorf("expected one record back, got %d entries", len(entries))
	}
	got, err := recordBytes(entries[0].Record)
	if err != nil {
		return err
	}
	want, err := recordBytes(testCtx.Record)
	if err != nil {
		return err
	}
	if !bytes.Equal(got, want) {
		return fmt.Errorf("%s round trip changed the record:\n%s\nwant:\n%s", format, got, want)
	}
	return nil
}

// recordBytes renders a record as YAML for comparison.
func recordBytes(r *receipt.Record) ([]byte, error) {
	var buf bytes.Buffer
	if err := export.Write(&buf, export.FormatYAML, []export.Entry{{Record: r}}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RegisterSteps registers the validation step definitions.
func (testCtx *TestContext) RegisterSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a receipt with items:$`, testCtx.aReceiptWithItems)
	sc.Step(`^the payment:$`, testCtx.thePayment)
	sc.Step(`^the tolerance is ([0-9.]+)$`, testCtx.theToleranceIs)
	sc.Step(`^the receipt is validated in "([^"]*)" mode$`, testCtx.theReceiptIsValidatedInMode)

	sc.Step(`^there should be no inconsistencies$`, testCtx.thereShouldBeNoInconsistencies)
	sc.Step(`^the inconsistencies should be "([^"]*)"$`, testCtx.theInconsistenciesShouldBe)
	sc.Step(`^inconsistency (\d+) should mention "([^"]*)"$`, testCtx.inconsistencyShouldMention)
	sc.Step(`^inconsistency (\d+) should (not )?be marked corrected$`, testCtx.inconsistencyShouldBeCorrected)
	sc.Step(`^item (\d+) should have quantity ([0-9.]+), price ([0-9.]+) and amount ([0-9.]+)$`, testCtx.itemShouldHave)
	sc.Step(`^the payment "([^"]*)" should be ([0-9.]+)$`, testCtx.thePaymentFieldShouldBe)
	sc.Step(`^the record should be unchanged$`, testCtx.theRecordShouldBeUnchanged)
	sc.Step(`^the record should survive a "([^"]*)" round trip$`, testCtx.theRecordSurvivesARoundTrip)
}
