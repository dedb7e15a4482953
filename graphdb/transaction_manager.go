package graphdb

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// OperationType defines types of operations
type OperationType int

const (
	OpAddVertex OperationType = iota
	OpAddEdge
)

func (o OperationType) String() string {
	switch o {
	case OpAddVertex:
		return "add_vertex"
	case OpAddEdge:
		return "add_edge"
	default:
		return "unknown"
	}
}

// TransactionOperation represents a transaction operation
type TransactionOperation struct {
	Type     OperationType
	VertexID int64
	EdgeID   int64
}

// TransactionManager tracks write batches so a failed batch can be undone
type TransactionManager struct {
	graph      *GraphManager
	nextTxnID  int64
	operations map[int64][]TransactionOperation // txnID -> operations
}

// NewTransactionManager initializes a new TransactionManager
func NewTransactionManager(graph *GraphManager) *TransactionManager {
	return &TransactionManager{
		graph:      graph,
		nextTxnID:  1,
		operations: make(map[int64][]TransactionOperation),
	}
}

// BeginTransaction starts a new transaction
func (tm *TransactionManager) BeginTransaction() int64 {
	txnID := tm.nextTxnID
	tm.nextTxnID++
	tm.operations[txnID] = []TransactionOperation{}
	logrus.WithField("txn_id", txnID).Debug("Transaction started")
	return txnID
}

// RecordOperation logs an operation for a transaction
func (tm *TransactionManager) RecordOperation(txnID int64, op TransactionOperation) error {
	if _, exists := tm.operations[txnID]; !exists {
		return fmt.Errorf("transaction %d not found", txnID)
	}
	tm.operations[txnID] = append(tm.operations[txnID], op)
	return nil
}

// CommitTransaction forgets the undo log of a transaction
func (tm *TransactionManager) CommitTransaction(txnID int64) error {
	ops, exists := tm.operations[txnID]
	if !exists {
		return fmt.Errorf("transaction %d not found", txnID)
	}
	delete(tm.operations, txnID)
	logrus.WithFields(logrus.Fields{
		"txn_id":     txnID,
		"operations": len(ops),
	}).Info("Transaction committed")
	return nil
}

// RollbackTransaction tombstones everything the transaction wrote, newest first
func (tm *TransactionManager) RollbackTransaction(txnID int64) error {
	log := logrus.WithField("txn_id", txnID)
	ops, exists := tm.operations[txnID]
	if !exists {
		return fmt.Errorf("transaction %d not found", txnID)
	}
	delete(tm.operations, txnID)

	for i := len(ops) - 1; i >= 0; i-- {
		op := ops[i]
		var err error
		switch op.Type {
		case OpAddEdge:
			err = tm.graph.deactivateEdge(op.EdgeID)
		case OpAddVertex:
			err = tm.graph.deactivateVertex(op.VertexID)
		}
		if err != nil {
			log.WithError(err).WithField("op_type", op.Type).Error("Rollback step failed")
			return fmt.Errorf("failed to roll back %s: %w", op.Type, err)
		}
	}
	log.WithField("operations", len(ops)).Warn("Transaction rolled back")
	return nil
}
