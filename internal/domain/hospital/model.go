// Package hospital registers hospitals as accounts on the Hedera network.
package hospital

import (
	"strings"
	"time"

	"github.com/hashgraph/hedera-sdk-go/v2"

	"github.com/medchain/medchain/internal/apperr"
)

// InitialBalance is what every new hospital account is funded with.
var InitialBalance = hedera.NewHbar(10)

// Registration is the form a hospital administrator submits. The operator
// pays for the account creation.
type Registration struct {
	HospitalName       string `json:"hospitalName"`
	OperatorAccountID  string `json:"operatorAccountId"`
	OperatorPrivateKey string `json:"operatorPrivateKey"`
}

// Validate names every blank field at once.
func (r Registration) Validate() error {
	var missing []string
	if strings.TrimSpace(r.HospitalName) == "" {
		missing = append(missing, "hospitalName")
	}
	if strings.TrimSpace(r.OperatorAccountID) == "" {
		missing = append(missing, "operatorAccountId")
	}
	if strings.TrimSpace(r.OperatorPrivateKey) == "" {
		missing = append(missing, "operatorPrivateKey")
	}
	if len(missing) > 0 {
		return apperr.NewValidationError(missing...)
	}
	return nil
}

// BalanceRequest asks for an account balance using the operator's credentials.
type BalanceRequest struct {
	AccountID          string `json:"accountId"`
	OperatorAccountID  string `json:"operatorAccountId"`
	OperatorPrivateKey string `json:"operatorPrivateKey"`
}

// Operator is the parsed paying account.
type Operator struct {
	AccountID hedera.AccountID
	Key       hedera.PrivateKey
}

// ParseOperator parses the operator credentials. Malformed values are a
// ValidationError naming the offending field.
func ParseOperator(accountID, privateKey string) (Operator, error) {
	id, err := ParseAccountID("operatorAccountId", accountID)
	if err != nil {
		return Operator{}, err
	}
	key, err := hedera.PrivateKeyFromString(strings.TrimSpace(privateKey))
	if err != nil {
		return Operator{}, &apperr.ValidationError{
			Fields:  []string{"operatorPrivateKey"},
			Message: "operatorPrivateKey is not a valid private key",
		}
	}
	return Operator{AccountID: id, Key: key}, nil
}

// ParseAccountID parses a shard.realm.num account id.
func ParseAccountID(field, s string) (hedera.AccountID, error) {
	id, err := hedera.AccountIDFromString(strings.TrimSpace(s))
	if err != nil {
		return hedera.AccountID{}, &apperr.ValidationError{
			Fields:  []string{field},
			Message: field + " must look like 0.0.1234",
		}
	}
	return id, nil
}

// Account is a freshly created network account. PrivateKey is only ever
// held in memory and handed back once.
type Account struct {
	AccountID  string
	PublicKey  string
	PrivateKey string
}

// Hospital is the registration result shown to the administrator.
type Hospital struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"createdAt"`
	PublicKey  string    `json:"publicKey"`
	PrivateKey string    `json:"privateKey"`
}

// Balance is an account balance in tinybars.
type Balance struct {
	AccountID string `json:"accountId"`
	Tinybars  int64  `json:"tinybars"`
}
