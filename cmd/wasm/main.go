//go:build js && wasm

// Command wasm exposes key generation, encryption and decryption to the browser, so the
// data owner can query /api/inference without the secret key leaving the page.
//
//	fheKeygen()                          Promise<{secretKey, bootstrappingKey, keyswitchingKey, prefix}>
//	fheEncrypt(secretKey, values, bound) Promise<string[]>
//	fheDecrypt(secretKey, ciphertext)    Promise<number>
//	fheDecryptDecision(secretKey, ct)    Promise<number>
//	fheGetParamsInfo()                   {prefix, n, precisionBits, paddingBits}
package main

import (
	"fmt"
	"syscall/js"

	"github.com/z3rotig4r/tfhe_logreg/client"
	"github.com/z3rotig4r/tfhe_logreg/keys"
	"github.com/z3rotig4r/tfhe_logreg/lwe"
)

var params lwe.Parameters

func init() {
	var err error
	if params, err = lwe.NewParameters(lwe.DefaultParameters); err != nil {
		panic(fmt.Sprintf("Failed to create LWE parameters: %v", err))
	}
}

// promise runs f in a goroutine and settles a JavaScript Promise with its result.
func promise(name string, f func() (interface{}, error)) js.Value {
	handler := js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		resolve, reject := args[0], args[1]

		go func() {
			defer func() {
				if r := recover(); r != nil {
					reject.Invoke(js.Global().Get("Error").New(fmt.Sprintf("%s failed: %v", name, r)))
				}
			}()

			v, err := f()
			if err != nil {
				reject.Invoke(js.Global().Get("Error").New(fmt.Sprintf("%s failed: %v", name, err)))
				return
			}
			resolve.Invoke(v)
		}()

		return nil
	})

	return js.Global().Get("Promise").New(handler)
}

func toUint8Array(data []byte) js.Value {
	arr := js.Global().Get("Uint8Array").New(len(data))
	js.CopyBytesToJS(arr, data)
	return arr
}

func fromUint8Array(v js.Value) []byte {
	data := make([]byte, v.Get("length").Int())
	js.CopyBytesToGo(data, v)
	return data
}

func newClient(secretKey js.Value) (*client.Client, error) {
	sk, err := keys.ParseSecretKey(params, fromUint8Array(secretKey))
	if err != nil {
		return nil, err
	}
	return client.New("", params, sk, nil), nil
}

func keygenWrapper(this js.Value, args []js.Value) interface{} {
	return promise("Keygen", func() (interface{}, error) {
		sk, bsk, ksk, err := keys.Generate(params).Artifacts()
		if err != nil {
			return nil, err
		}

		result := js.Global().Get("Object").New()
		result.Set("secretKey", toUint8Array(sk))
		result.Set("bootstrappingKey", toUint8Array(bsk))
		result.Set("keyswitchingKey", toUint8Array(ksk))
		result.Set("prefix", params.Prefix())
		return result, nil
	})
}

func encryptWrapper(this js.Value, args []js.Value) interface{} {
	if len(args) != 3 {
		return js.Global().Get("Error").New("fheEncrypt requires 3 arguments: secretKey (Uint8Array), values (Array), bound (number)")
	}

	secretKey, values, bound := args[0], args[1], args[2].Float()
	features := make([]float64, values.Length())
	for i := range features {
		features[i] = values.Index(i).Float()
	}

	return promise("Encrypt", func() (interface{}, error) {
		c, err := newClient(secretKey)
		if err != nil {
			return nil, err
		}
		encrypted, err := c.EncryptFeatures(features, bound)
		if err != nil {
			return nil, err
		}

		out := make([]interface{}, len(encrypted))
		for i, s := range encrypted {
			out[i] = s
		}
		return js.ValueOf(out), nil
	})
}

func decryptWrapper(decision bool) js.Func {
	return js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		if len(args) != 2 {
			return js.Global().Get("Error").New("decrypt requires 2 arguments: secretKey (Uint8Array), ciphertext (base64 string)")
		}

		secretKey, ct := args[0], args[1].String()
		return promise("Decrypt", func() (interface{}, error) {
			c, err := newClient(secretKey)
			if err != nil {
				return nil, err
			}
			if decision {
				return c.DecryptDecision(ct)
			}
			return c.Decrypt(ct)
		})
	})
}

func getParamsInfo(this js.Value, args []js.Value) interface{} {
	return map[string]interface{}{
		"prefix":        params.Prefix(),
		"n":             params.N(),
		"precisionBits": params.PrecisionBits(),
		"paddingBits":   params.PaddingBits(),
	}
}

func main() {
	js.Global().Set("fheKeygen", js.FuncOf(keygenWrapper))
	js.Global().Set("fheEncrypt", js.FuncOf(encryptWrapper))
	js.Global().Set("fheDecrypt", decryptWrapper(false))
	js.Global().Set("fheDecryptDecision", decryptWrapper(true))
	js.Global().Set("fheGetParamsInfo", js.FuncOf(getParamsInfo))

	fmt.Println("✅ FHE WASM module loaded")

	select {}
}
