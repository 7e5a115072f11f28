package policy

import (
	"fmt"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var ortInitOnce sync.Once

// InitializeORT loads the onnxruntime shared library once per process.
func InitializeORT() error {
	var err error
	ortInitOnce.Do(func() {
		libPath := "/usr/lib/libonnxruntime.so"
		if runtime.GOOS == "windows" {
			libPath = "onnxruntime.dll"
		} else if runtime.GOOS == "darwin" {
			libPath = "libonnxruntime.dylib"
		}
		ort.SetSharedLibraryPath(libPath)
		err = ort.InitializeEnvironment()
	})
	return err
}

// ONNXModel runs a (1, dim) float32 observation through an exported policy
// network producing a (1, 2) output: action class and size scalar.
type ONNXModel struct {
	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	dim     int
}

func NewONNXModel(modelPath string, dim int) (*ONNXModel, error) {
	if err := InitializeORT(); err != nil {
		return nil, fmt.Errorf("onnxruntime init failed: %w", err)
	}

	inputTensor, err := ort.NewTensor(ort.NewShape(1, int64(dim)), make([]float32, dim))
	if err != nil {
		return nil, fmt.Errorf("create input tensor failed: %w", err)
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 2))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("create output tensor failed: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"observation"}, []string{"action"},
		[]ort.Value{inputTensor}, []ort.Value{outputTensor}, nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("load model %s failed: %w", modelPath, err)
	}

	return &ONNXModel{
		session: session,
		input:   inputTensor,
		output:  outputTensor,
		dim:     dim,
	}, nil
}

func (m *ONNXModel) Predict(obs []float64) (Output, error) {
	if err := validateDim(obs, m.dim); err != nil {
		return Output{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	data := m.input.GetData()
	for i, v := range obs {
		data[i] = float32(v)
	}
	if err := m.session.Run(); err != nil {
		return Output{}, fmt.Errorf("inference failed: %w", err)
	}

	out := m.output.GetData()
	if len(out) < 2 {
		return Output{}, fmt.Errorf("model produced %d outputs, expected 2", len(out))
	}
	return Output{Action: int(out[0]), Size: float64(out[1])}, nil
}

func (m *ONNXModel) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session != nil {
		m.session.Destroy()
		m.session = nil
	}
	if m.input != nil {
		m.input.Destroy()
		m.input = nil
	}
	if m.output != nil {
		m.output.Destroy()
		m.output = nil
	}
}
