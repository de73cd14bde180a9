package daraja

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAccountBalance(t *testing.T) {
	in := "Working Account|KES|500.00|500.00|0.00|0.00&Utility Account|KES|120.00|120.00|0.00|0.00"
	snaps, err := ParseAccountBalance(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(snaps))
	}
	if snaps[0].AccountType != "Working Account" || snaps[0].Currency != "KES" ||
		!snaps[0].Amount.Equal(decimal.RequireFromString("500.00")) {
		t.Errorf("first snapshot wrong: %+v", snaps[0])
	}
	if snaps[1].AccountType != "Utility Account" ||
		!snaps[1].Amount.Equal(decimal.RequireFromString("120.00")) {
		t.Errorf("second snapshot wrong: %+v", snaps[1])
	}
}

func TestParseAccountBalanceMalformed(t *testing.T) {
	if _, err := ParseAccountBalance("Working Account|KES"); err == nil {
		t.Fatal("expected error for short segment")
	}
	if _, err := ParseAccountBalance("Working Account|KES|notanumber"); err == nil {
		t.Fatal("expected error for bad amount")
	}
}

func TestParseSTKSettlement(t *testing.T) {
	raw := []byte(`{
		"Body": {
			"stkCallback": {
				"MerchantRequestID": "29115-34620561-1",
				"CheckoutRequestID": "ws_CO_191220191020363925",
				"ResultCode": 0,
				"ResultDesc": "The service request is processed successfully.",
				"CallbackMetadata": {
					"Item": [
						{"Name": "Amount", "Value": 50.00},
						{"Name": "MpesaReceiptNumber", "Value": "NLJ7RT61SV"},
						{"Name": "TransactionDate", "Value": 20191219102115},
						{"Name": "PhoneNumber", "Value": 254712345678}
					]
				}
			}
		}
	}`)
	s, err := ParseSTKSettlement(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.CheckoutRequestID != "ws_CO_191220191020363925" {
		t.Errorf("checkout id = %q", s.CheckoutRequestID)
	}
	if s.ResultCode != "0" {
		t.Errorf("result code = %q", s.ResultCode)
	}
	if !s.Amount.Equal(decimal.NewFromInt(50)) {
		t.Errorf("amount = %s", s.Amount)
	}
	if s.MpesaReceipt != "NLJ7RT61SV" {
		t.Errorf("receipt = %q", s.MpesaReceipt)
	}
	if s.PhoneNumber != "254712345678" {
		t.Errorf("phone = %q", s.PhoneNumber)
	}
}

func TestParseSTKSettlementRejectsUnknownShape(t *testing.T) {
	if _, err := ParseSTKSettlement([]byte(`{"Result":{"ResultCode":0}}`)); err == nil {
		t.Fatal("expected rejection of non-stk shape")
	}
	if _, err := ParseSTKSettlement([]byte(`not json`)); err == nil {
		t.Fatal("expected rejection of invalid json")
	}
}

func TestParseStatusResult(t *testing.T) {
	raw := []byte(`{
		"Result": {
			"ResultType": 0,
			"ResultCode": 0,
			"ResultDesc": "The service request is processed successfully.",
			"OriginatorConversationID": "10816-694520-1",
			"ConversationID": "AG_20250301_0000abcdef",
			"TransactionID": "SGE8P4F6LW",
			"ResultParameters": {
				"ResultParameter": [
					{"Key": "TransactionStatus", "Value": "Completed"},
					{"Key": "PayerPartyPublicName", "Value": "254712345678 - JOHN DOE"},
					{"Key": "Amount", "Value": 150.0}
				]
			}
		}
	}`)
	res, err := ParseStatusResult(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ConversationID != "AG_20250301_0000abcdef" {
		t.Errorf("conversation id = %q", res.ConversationID)
	}
	if res.TransactionStatus != "Completed" {
		t.Errorf("status = %q", res.TransactionStatus)
	}
	if res.PayerName != "254712345678 - JOHN DOE" {
		t.Errorf("payer = %q", res.PayerName)
	}
	if res.Amount != "150" {
		t.Errorf("amount = %q", res.Amount)
	}
}

func TestParseStatusResultMissingResult(t *testing.T) {
	if _, err := ParseStatusResult([]byte(`{"Body":{}}`)); err == nil {
		t.Fatal("expected rejection when Result is absent")
	}
}

func TestParseBalanceResult(t *testing.T) {
	raw := []byte(`{
		"Result": {
			"ResultCode": 0,
			"ResultDesc": "The service request is processed successfully.",
			"ResultParameters": {
				"ResultParameter": [
					{"Key": "AccountBalance", "Value": "Working Account|KES|500.00|500.00|0.00|0.00"}
				]
			}
		}
	}`)
	snaps, err := ParseBalanceResult(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snaps) != 1 || snaps[0].AccountType != "Working Account" {
		t.Fatalf("snapshots = %+v", snaps)
	}
}

func TestParseBalanceResultRejected(t *testing.T) {
	raw := []byte(`{"Result":{"ResultCode":2001,"ResultDesc":"The initiator information is invalid."}}`)
	if _, err := ParseBalanceResult(raw); err == nil {
		t.Fatal("expected error for non-zero result code")
	}
}

func TestParseReversalResult(t *testing.T) {
	raw := []byte(`{"Result":{"ResultCode":0,"ResultDesc":"ok","TransactionID":"SGE8P4F6LW"}}`)
	res, err := ParseReversalResult(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.TransactionID != "SGE8P4F6LW" || res.ResultCode != "0" {
		t.Fatalf("result = %+v", res)
	}

	if _, err := ParseReversalResult([]byte(`{"Result":{"ResultCode":0}}`)); err == nil {
		t.Fatal("expected rejection when TransactionID is absent")
	}
}

func TestParseC2BConfirmation(t *testing.T) {
	raw := []byte(`{"TransID":"NLJ7RT61SV","TransAmount":"10.00","MSISDN":"254712345678","FirstName":"JOHN"}`)
	c, err := ParseC2BConfirmation(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.TransID != "NLJ7RT61SV" || c.MSISDN != "254712345678" {
		t.Fatalf("confirmation = %+v", c)
	}
	if c.TransAmount != "10.00" {
		t.Fatalf("amount = %q", c.TransAmount)
	}

	if _, err := ParseC2BConfirmation([]byte(`{"TransAmount":"10.00"}`)); err == nil {
		t.Fatal("expected rejection when TransID is absent")
	}
}
