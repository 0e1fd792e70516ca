package hospital

import (
	"context"
	"fmt"

	"github.com/hashgraph/hedera-sdk-go/v2"
)

// Network is the slice of the Hedera network the service needs.
type Network interface {
	CreateAccount(ctx context.Context, op Operator, initial hedera.Hbar) (*Account, error)
	Balance(ctx context.Context, op Operator, id hedera.AccountID) (int64, error)
}

// HederaNetwork talks to a named Hedera network (testnet, previewnet or
// mainnet). A client is built per call since the operator comes with each
// request.
type HederaNetwork struct {
	name string
}

func NewHederaNetwork(name string) *HederaNetwork {
	return &HederaNetwork{name: name}
}

func (n *HederaNetwork) client(op Operator) (*hedera.Client, error) {
	client, err := hedera.ClientForName(n.name)
	if err != nil {
		return nil, fmt.Errorf("client for %s: %w", n.name, err)
	}
	client.SetOperator(op.AccountID, op.Key)
	return client, nil
}

// CreateAccount generates an ED25519 key pair and creates an account owned
// by it, funded by the operator. The transaction is signed by both keys.
func (n *HederaNetwork) CreateAccount(ctx context.Context, op Operator, initial hedera.Hbar) (*Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	client, err := n.client(op)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	key, err := hedera.PrivateKeyGenerateEd25519()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	pub := key.PublicKey()

	tx, err := hedera.NewAccountCreateTransaction().
		SetKey(pub).
		SetInitialBalance(initial).
		FreezeWith(client)
	if err != nil {
		return nil, fmt.Errorf("freeze transaction: %w", err)
	}
	resp, err := tx.Sign(key).Execute(client)
	if err != nil {
		return nil, fmt.Errorf("execute transaction: %w", err)
	}
	receipt, err := resp.GetReceipt(client)
	if err != nil {
		return nil, fmt.Errorf("get receipt: %w", err)
	}
	if receipt.AccountID == nil {
		return nil, fmt.Errorf("receipt for %s carries no account id", resp.TransactionID.String())
	}

	return &Account{
		AccountID:  receipt.AccountID.String(),
		PublicKey:  pub.String(),
		PrivateKey: key.String(),
	}, nil
}

func (n *HederaNetwork) Balance(ctx context.Context, op Operator, id hedera.AccountID) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	client, err := n.client(op)
	if err != nil {
		return 0, err
	}
	defer client.Close()

	balance, err := hedera.NewAccountBalanceQuery().
		SetAccountID(id).
		Execute(client)
	if err != nil {
		return 0, fmt.Errorf("balance query: %w", err)
	}
	return balance.Hbars.AsTinybar(), nil
}
