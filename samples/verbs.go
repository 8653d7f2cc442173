package samples

import (
	"strings"

	"go.uber.org/zap"

	afbruntime "github.com/wippyai/afb-runtime"
	"github.com/wippyai/afb-runtime/jsonc"
	"github.com/wippyai/afb-runtime/params"
)

func errorDoc(err error) jsonc.Doc {
	return jsonc.MustFrom(map[string]string{"error": err.Error()})
}

// upperDoc upper-cases every key and string of doc.
func upperDoc(doc jsonc.Doc) (jsonc.Doc, error) {
	return jsonc.Parse(strings.ToUpper(doc.Raw()))
}

func verbBasic(rqt afbruntime.Request, args *params.Params) error {
	query, err := params.Get[jsonc.Doc](args, 0)
	if err != nil {
		rqt.Logger().Error("invalid json argument", zap.Error(err))
		query = jsonc.MustFrom("invalid json input argument")
	} else {
		rqt.Logger().Info("valid json argument", zap.Stringer("argument", query))
	}

	reply, err := upperDoc(query)
	if err != nil {
		return err
	}
	return rqt.ReplyValues(0, reply)
}

func verbTyped(rqt afbruntime.Request, args *params.Params) error {
	input, err := params.Get[SimpleData](args, 0)
	if err != nil {
		return err
	}
	output := SimpleData{
		Name: strings.ToUpper(input.Name),
		X:    input.X + 1,
		Y:    input.Y - 1,
	}
	return rqt.ReplyValues(0, output)
}
