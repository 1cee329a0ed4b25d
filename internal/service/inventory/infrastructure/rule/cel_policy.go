// internal/service/inventory/infrastructure/rule/cel_policy.go
package rule

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"stockflow/internal/service/inventory/domain"
)

// DefaultRestockRule 只回补配送失败的数量
const DefaultRestockRule = `status == "FAILED"`

// CELRestockPolicy 是 port.RestockPolicy 的 CEL 实现。
// 表达式可以使用 status、quantity、product_id、order_id 四个变量，必须返回 bool。
type CELRestockPolicy struct {
	expression string
	program    cel.Program
}

// NewCELRestockPolicy 编译表达式，语法或类型错误在启动时暴露
func NewCELRestockPolicy(expression string) (*CELRestockPolicy, error) {
	if expression == "" {
		expression = DefaultRestockRule
	}
	env, err := cel.NewEnv(
		cel.Variable("status", cel.StringType),
		cel.Variable("quantity", cel.IntType),
		cel.Variable("product_id", cel.IntType),
		cel.Variable("order_id", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}

	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile restock rule %q: %w", expression, issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("restock rule %q must evaluate to bool, got %s", expression, ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build restock rule program: %w", err)
	}
	return &CELRestockPolicy{expression: expression, program: program}, nil
}

func (p *CELRestockPolicy) ShouldRestock(_ context.Context, outcome domain.DeliveryOutcome) (bool, error) {
	out, _, err := p.program.Eval(map[string]any{
		"status":     outcome.Status,
		"quantity":   outcome.Quantity,
		"product_id": outcome.ProductID,
		"order_id":   string(outcome.OrderID),
	})
	if err != nil {
		return false, fmt.Errorf("evaluate restock rule %q: %w", p.expression, err)
	}
	restock, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("restock rule %q returned %T", p.expression, out.Value())
	}
	return restock, nil
}

func (p *CELRestockPolicy) Expression() string {
	return p.expression
}
