package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestConcurrentTransfers_BalanceConservation fires concurrent transfers
// that exactly drain the sender and verifies no money is created or
// destroyed. The serializing transactor mirrors the row locks the postgres
// repos take with SELECT FOR UPDATE.
func TestConcurrentTransfers_BalanceConservation(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	senderToken, _ := login(t, app, "conc-sender@example.com")
	recipientToken, _ := login(t, app, "conc-recipient@example.com")

	fundWallet(t, app, senderToken, 1000000)
	recipientWallet := getWalletNumber(t, app, "conc-recipient@example.com")

	concurrency := 20
	transferAmount := int64(50000) // 20 * 50,000 = exactly the funded balance

	var wg sync.WaitGroup
	var successCount atomic.Int64
	var failCount atomic.Int64

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if doTransfer(app, senderToken, recipientWallet, transferAmount) == http.StatusOK {
				successCount.Add(1)
			} else {
				failCount.Add(1)
			}
		}()
	}
	wg.Wait()

	t.Logf("Concurrent transfers: %d succeeded, %d failed (out of %d)",
		successCount.Load(), failCount.Load(), concurrency)

	assert.Equal(t, int64(concurrency), successCount.Load(), "every transfer is covered by the funded balance")

	senderBalance := getBalance(t, app, senderToken)
	recipientBalance := getBalance(t, app, recipientToken)

	assert.Equal(t, int64(0), senderBalance, "sender drained exactly")
	assert.Equal(t, int64(1000000), recipientBalance, "recipient received every transfer")
	assert.Equal(t, int64(1000000), senderBalance+recipientBalance, "total balance conserved")
}

// TestConcurrentTransfers_Overspend verifies that concurrent transfers
// exceeding the balance cannot drive it negative: the funds check is
// re-run under the wallet lock.
func TestConcurrentTransfers_Overspend(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	senderToken, _ := login(t, app, "overspend-sender@example.com")
	recipientToken, _ := login(t, app, "overspend-recipient@example.com")

	fundWallet(t, app, senderToken, 100000)
	recipientWallet := getWalletNumber(t, app, "overspend-recipient@example.com")

	// 10 concurrent transfers of 50,000 against a 100,000 balance: exactly
	// two can settle.
	concurrency := 10
	transferAmount := int64(50000)

	var wg sync.WaitGroup
	var successCount atomic.Int64
	var insufficientCount atomic.Int64

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			switch doTransfer(app, senderToken, recipientWallet, transferAmount) {
			case http.StatusOK:
				successCount.Add(1)
			case http.StatusPaymentRequired:
				insufficientCount.Add(1)
			}
		}()
	}
	wg.Wait()

	t.Logf("Overspend test: %d succeeded, %d rejected (out of %d)",
		successCount.Load(), insufficientCount.Load(), concurrency)

	assert.Equal(t, int64(2), successCount.Load())
	assert.Equal(t, int64(concurrency-2), insufficientCount.Load())

	senderBalance := getBalance(t, app, senderToken)
	recipientBalance := getBalance(t, app, recipientToken)

	assert.Equal(t, int64(0), senderBalance)
	assert.Equal(t, int64(100000), recipientBalance)
	assert.GreaterOrEqual(t, senderBalance, int64(0), "balance must never go negative")
}

// TestConcurrentWebhookDeliveries verifies that duplicate concurrent
// deliveries of the same settlement credit the wallet exactly once.
func TestConcurrentWebhookDeliveries(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	token, _ := login(t, app, "conc-webhook@example.com")
	reference := initiateDeposit(t, app, token, 75000)

	concurrency := 20

	var wg sync.WaitGroup
	var ackCount atomic.Int64

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if deliverWebhookQuietly(app, reference, 75000) == http.StatusOK {
				ackCount.Add(1)
			}
		}()
	}
	wg.Wait()

	// Every delivery is acknowledged so the processor stops retrying, but
	// the wallet is credited once.
	assert.Equal(t, int64(concurrency), ackCount.Load(), "all deliveries acknowledged")
	assert.Equal(t, int64(75000), getBalance(t, app, token), "settlement credited exactly once")
}

// --- Helpers ---

func doTransfer(app *testApp, token, walletNumber string, amount int64) int {
	body, _ := json.Marshal(map[string]interface{}{
		"wallet_number": walletNumber,
		"amount":        amount,
	})
	req, err := http.NewRequest(http.MethodPost, app.server.URL+"/api/v1/wallet/transfer", bytes.NewReader(body))
	if err != nil {
		return 0
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0
	}
	defer resp.Body.Close()
	_, _ = io.ReadAll(resp.Body)
	return resp.StatusCode
}

func deliverWebhookQuietly(app *testApp, reference string, amount int64) int {
	payload := webhookPayload(reference, amount)
	req, err := http.NewRequest(http.MethodPost, app.server.URL+"/api/v1/wallet/webhook", bytes.NewReader(payload))
	if err != nil {
		return 0
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-paystack-signature", signPayload(payload))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0
	}
	defer resp.Body.Close()
	_, _ = io.ReadAll(resp.Body)
	return resp.StatusCode
}
