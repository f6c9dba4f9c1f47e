package receipts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"travesia_payments/internal/models"
	"travesia_payments/internal/ports"

	"github.com/minio/minio-go/v7"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

const (
	sheetName   = "Receipt"
	contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type ObjectPutter interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

type Mailer interface {
	SendReceipt(to []string, r models.Receipt, filename string, workbook []byte) error
}

// Publisher stores a receipt workbook in object storage and optionally mails it.
type Publisher struct {
	Storage ObjectPutter
	Bucket  string
	Mailer  Mailer
	MailTo  []string
	Log     *logrus.Logger
}

var _ ports.ReceiptPublisher = (*Publisher)(nil)

// ObjectKey is receipts/YYYY/MM/<payment_id>.xlsx, dated by submission time in UTC.
func ObjectKey(r models.Receipt) string {
	t := r.SubmittedAt.UTC()
	return path.Join("receipts", t.Format("2006"), t.Format("01"), r.PaymentID+".xlsx")
}

func (p *Publisher) Publish(ctx context.Context, r models.Receipt) error {
	wb, err := BuildWorkbook(r)
	if err != nil {
		return fmt.Errorf("build receipt: %w", err)
	}

	var errs []error
	key := ObjectKey(r)

	if p.Storage != nil && p.Bucket != "" {
		_, err := p.Storage.PutObject(ctx, p.Bucket, key, bytes.NewReader(wb), int64(len(wb)), minio.PutObjectOptions{
			ContentType: contentType,
			UserMetadata: map[string]string{
				"payment-id": r.PaymentID,
			},
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("upload %s: %w", key, err))
		} else {
			p.logger().Infof("[RECEIPT][S3] payment=%s key=%s size=%d", r.PaymentID, key, len(wb))
		}
	}

	if p.Mailer != nil && len(p.MailTo) > 0 {
		if err := p.Mailer.SendReceipt(p.MailTo, r, path.Base(key), wb); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (p *Publisher) logger() *logrus.Logger {
	if p.Log == nil {
		return logrus.StandardLogger()
	}
	return p.Log
}

// BuildWorkbook renders the receipt: a header block, then one line per application.
func BuildWorkbook(r models.Receipt) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, err
	}

	ref := ""
	if r.BankReference != nil {
		ref = *r.BankReference
	}
	head := [][]any{
		{"Payment", r.PaymentID},
		{"Submitted at", r.SubmittedAt.UTC().Format("2006-01-02 15:04:05")},
		{"Submitted by", r.SubmittedBy},
		{"Method", r.PaymentMethodCode},
		{"Reference", ref},
		{"Total", r.TotalAmount.InexactFloat64()},
	}
	for i, row := range head {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return nil, err
		}
	}

	tableStart := len(head) + 2
	columns := []any{"Debtor", "Identity card", "Package", "Debt", "Amount"}
	cell, _ := excelize.CoordinatesToCellName(1, tableStart)
	if err := f.SetSheetRow(sheetName, cell, &columns); err != nil {
		return nil, err
	}

	for i, l := range r.Lines {
		row := []any{l.DebtorName, l.IdentityCard, l.PackageName, l.DebtID, l.AmountToApply.InexactFloat64()}
		cell, _ := excelize.CoordinatesToCellName(1, tableStart+1+i)
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return nil, err
		}
	}

	if style, err := f.NewStyle(&excelize.Style{NumFmt: 4}); err == nil {
		last := tableStart + len(r.Lines)
		_ = f.SetCellStyle(sheetName, "B6", "B6", style)
		_ = f.SetCellStyle(sheetName, fmt.Sprintf("E%d", tableStart+1), fmt.Sprintf("E%d", last), style)
	}
	_ = f.SetColWidth(sheetName, "A", "C", 24)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
