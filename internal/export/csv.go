package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/MeKo-Tech/receiptminer/internal/receipt"
)

// csvHeader lists one row per line item. Receipts without items, and
// failed receipts, get a single row with empty item columns.
var csvHeader = []string{
	"receipt_index", "source", "error", "id",
	"name", "address", "code", "tax_payer_name", "tin", "sale_receipt_number", "cashier", "date", "time",
	"total_amount", "tax_amount", "non_tax_amount", "cashless", "cash", "paid_cash", "change", "bonus", "prepayment", "credit",
	"item_index", "item_name", "quantity", "price", "amount",
}

const itemColumns = 5

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func writeCSV(w io.Writer, entries []Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for i, e := range entries {
		prefix := []string{strconv.Itoa(i), e.Source, e.Error}
		if e.Record == nil {
			row := append(prefix, make([]string, len(csvHeader)-len(prefix))...)
			if err := cw.Write(row); err != nil {
				return err
			}
			continue
		}
		r := e.Record
		g, p := r.General, r.Payment
		base := append(prefix,
			r.ID,
			g.Name, g.Address, g.Code, g.TaxPayerName, g.TIN, g.ReceiptNumber, g.Cashier, g.Date, g.Time,
			formatFloat(p.Total), formatFloat(p.Tax), formatFloat(p.NonTax),
			formatFloat(p.Cashless), formatFloat(p.Cash), formatFloat(p.PaidCash), formatFloat(p.Change),
			formatFloat(p.Bonus), formatFloat(p.Prepayment), formatFloat(p.Credit),
		)
		if len(r.Items) == 0 {
			if err := cw.Write(append(base, make([]string, itemColumns)...)); err != nil {
				return err
			}
			continue
		}
		for j, it := range r.Items {
			row := append(append([]string(nil), base...),
				strconv.Itoa(j), it.Name, formatFloat(it.Quantity), formatFloat(it.Price), formatFloat(it.Amount))
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func readCSV(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(csvHeader)
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("decode csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("decode csv: missing header")
	}
	for i, h := range csvHeader {
		if rows[0][i] != h {
			return nil, fmt.Errorf("decode csv: column %d is %q, want %q", i+1, rows[0][i], h)
		}
	}

	var entries []Entry
	last := -1
	for n, row := range rows[1:] {
		line := n + 2
		idx, err := strconv.Atoi(row[0])
		if err != nil {
			return nil, fmt.Errorf("decode csv line %d: receipt_index: %w", line, err)
		}
		if idx != last {
			e, err := entryFromRow(row)
			if err != nil {
				return nil, fmt.Errorf("decode csv line %d: %w", line, err)
			}
			entries = append(entries, e)
			last = idx
		}
		if row[23] == "" {
			continue
		}
		cur := &entries[len(entries)-1]
		if cur.Record == nil {
			return nil, fmt.Errorf("decode csv line %d: line item on a failed receipt", line)
		}
		it, err := itemFromRow(row[24:])
		if err != nil {
			return nil, fmt.Errorf("decode csv line %d: %w", line, err)
		}
		cur.Record.Items = append(cur.Record.Items, it)
	}
	return entries, nil
}

func entryFromRow(row []string) (Entry, error) {
	e := Entry{Source: row[1], Error: row[2]}
	if row[13] == "" {
		return e, nil
	}
	nums, err := parseFloats(csvHeader[13:23], row[13:23])
	if err != nil {
		return Entry{}, err
	}
	e.Record = &receipt.Record{
		ID: row[3],
		General: receipt.GeneralInfo{
			Name: row[4], Address: row[5], Code: row[6], TaxPayerName: row[7], TIN: row[8],
			ReceiptNumber: row[9], Cashier: row[10], Date: row[11], Time: row[12],
		},
		Payment: receipt.PaymentInfo{
			Total: nums[0], Tax: nums[1], NonTax: nums[2],
			Cashless: nums[3], Cash: nums[4], PaidCash: nums[5], Change: nums[6],
			Bonus: nums[7], Prepayment: nums[8], Credit: nums[9],
		},
	}
	return e, nil
}

func itemFromRow(cols []string) (receipt.LineItem, error) {
	nums, err := parseFloats(csvHeader[25:28], cols[1:4])
	if err != nil {
		return receipt.LineItem{}, err
	}
	return receipt.LineItem{Name: cols[0], Quantity: nums[0], Price: nums[1], Amount: nums[2]}, nil
}

func parseFloats(names, values []string) ([]float64, error) {
	out := make([]float64, len(values))
	for i, v := range values {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", names[i], err)
		}
		out[i] = f
	}
	return out, nil
}
