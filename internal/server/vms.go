package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jbweber/vmchat/internal/command"
	"github.com/jbweber/vmchat/internal/executor"
	"github.com/jbweber/vmchat/internal/loader"
	"github.com/jbweber/vmchat/internal/naming"
	"github.com/jbweber/vmchat/internal/vm"
)

const noInstancesMessage = "no VMs or multipass not installed"

func (s *Server) handleList(c *fiber.Ctx) error {
	detailed := c.QueryBool("detailed")

	var (
		instances []vm.Instance
		err       error
	)
	if detailed {
		instances, err = s.deps.Instances.ListDetailed(c.UserContext())
	} else {
		instances, err = s.deps.Instances.List(c.UserContext())
	}
	if errors.Is(err, vm.ErrToolNotFound) {
		return c.JSON(fiber.Map{"list": []any{}, "total": 0, "message": noInstancesMessage})
	}
	if err != nil {
		return err
	}

	if !detailed {
		return c.JSON(fiber.Map{"list": instances, "total": len(instances)})
	}
	summaries := make([]vm.Summary, 0, len(instances))
	for _, inst := range instances {
		summaries = append(summaries, inst.Summary())
	}
	return c.JSON(fiber.Map{"list": summaries, "total": len(summaries)})
}

func (s *Server) handleInfo(c *fiber.Ctx) error {
	name, err := nameParam(c)
	if err != nil {
		return err
	}
	inst, err := s.deps.Instances.Info(c.UserContext(), name)
	if err != nil {
		return err
	}
	return c.JSON(inst)
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	name, err := nameParam(c)
	if err != nil {
		return err
	}
	return c.JSON(s.deps.Pipeline.Status(name))
}

func (s *Server) handleCreate(c *fiber.Ctx) error {
	var spec loader.Spec
	if err := c.BodyParser(&spec); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	text, err := spec.CommandLine()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return s.dispatch(c, text, fiber.StatusAccepted)
}

func (s *Server) handleControl(op command.Operation) fiber.Handler {
	return func(c *fiber.Ctx) error {
		name, err := nameParam(c)
		if err != nil {
			return err
		}
		text := command.Binary + " " + string(op) + " " + name
		if op == command.OpDelete && c.QueryBool("purge") {
			text += " --purge"
		}
		return s.dispatch(c, text, fiber.StatusOK)
	}
}

func (s *Server) handleTasks(c *fiber.Ctx) error {
	return c.JSON(s.deps.Pipeline.Tasks())
}

func (s *Server) handleTask(c *fiber.Ctx) error {
	ts, ok := s.deps.Pipeline.TaskStatus(c.Params("id"))
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "task not found")
	}
	return c.JSON(ts)
}

// dispatch classifies text and runs it. A finished outcome's kind picks
// the status code; a started launch answers with started.
func (s *Server) dispatch(c *fiber.Ctx, text string, started int) error {
	cmd, rej := s.deps.Pipeline.Prepare(text)
	if rej != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": rej.Error(), "rejection": rej})
	}

	res, err := s.deps.Pipeline.Dispatch(c.UserContext(), cmd)
	if err != nil {
		return err
	}
	if res.Outcome == nil {
		return c.Status(started).JSON(res)
	}
	return c.Status(outcomeStatus(*res.Outcome)).JSON(res)
}

func outcomeStatus(out executor.Outcome) int {
	switch out.Kind {
	case executor.KindSuccess:
		return fiber.StatusOK
	case executor.KindNonZeroExit:
		return fiber.StatusBadRequest
	case executor.KindTimeout:
		return fiber.StatusRequestTimeout
	default:
		return fiber.StatusInternalServerError
	}
}

func nameParam(c *fiber.Ctx) (string, error) {
	name := c.Params("name")
	if !naming.ValidResourceName(name) {
		return "", fiber.NewError(fiber.StatusBadRequest, "invalid VM name")
	}
	return name, nil
}
