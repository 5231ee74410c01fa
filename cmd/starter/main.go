package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"

	"order-approval-service/internal/model"
	"order-approval-service/internal/workflows"
)

// Dev/demo tool that submits one order straight to the workflow engine,
// bypassing the HTTP gateway, and waits for the result. Orders at or
// above the approval threshold will sit in AWAITING_APPROVAL until a
// decision is posted through the api binary.
func main() {
	var (
		orderID   string
		name      string
		quantity  int
		totalCost float64
		hostPort  string
	)
	flag.StringVar(&orderID, "order", "", "order id (random when empty)")
	flag.StringVar(&name, "name", "Widget", "item name")
	flag.IntVar(&quantity, "quantity", 1, "quantity")
	flag.Float64Var(&totalCost, "cost", 50, "total cost")
	flag.StringVar(&hostPort, "temporal", "localhost:7233", "temporal host:port")
	flag.Parse()

	if orderID == "" {
		orderID = uuid.NewString()
	}

	c, err := client.Dial(client.Options{HostPort: hostPort})
	if err != nil {
		log.Fatalf("unable to create Temporal client: %v", err)
	}
	defer c.Close()

	opts := client.StartWorkflowOptions{
		ID:                                       workflows.WorkflowID(orderID),
		TaskQueue:                                workflows.TaskQueue,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
		WorkflowIDReusePolicy:                    enums.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
	}

	order := model.OrderRequest{
		Name:      name,
		TotalCost: totalCost,
		Quantity:  quantity,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	we, err := c.ExecuteWorkflow(ctx, opts, workflows.OrderProcessingWorkflow, order)
	if err != nil {
		log.Fatalf("unable to execute workflow: %v", err)
	}

	log.Printf("started order %s: WorkflowID=%s RunID=%s\n", orderID, we.GetID(), we.GetRunID())

	var result model.OrderResult
	if err := we.Get(context.Background(), &result); err != nil {
		log.Fatalf("unable to get workflow result: %v", err)
	}
	log.Printf("order %s finished: processed=%v\n", orderID, result.Processed)
}
